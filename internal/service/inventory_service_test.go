package service

import (
	"context"
	"testing"

	"backoffice/internal/apperror"
	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestAdjustStock_SaleCreatesAlert(t *testing.T) {
	env := newTestEnv()
	desk := env.products.seed(&model.Product{Name: "Desk", BaseStock: 5})
	actor := uuid.New()

	res, err := env.inventory.AdjustStock(context.Background(), StockAdjustment{
		Ref:        regularRef(desk.ID),
		Delta:      -3,
		ChangeType: model.ChangeTypeSale,
		ActorID:    &actor,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Before)
	assert.Equal(t, 2, res.After)

	logs := env.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, 5, logs[0].QuantityBefore)
	assert.Equal(t, 2, logs[0].QuantityAfter)
	assert.Equal(t, -3, logs[0].QuantityChange)
	assert.Equal(t, model.ChangeTypeSale, logs[0].ChangeType)
	assert.Equal(t, &actor, logs[0].ActorID)
	assert.Equal(t, []uuid.UUID{logs[0].ID}, res.LogIDs)

	alerts, err := env.inventory.ListActiveAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 2, alerts[0].CurrentStock)
	assert.Equal(t, testThreshold, alerts[0].Threshold)
	assert.Equal(t, []string{EventStockAlertCreated}, env.publisher.names())
}

func TestAdjustStock_ClampsAtZero(t *testing.T) {
	env := newTestEnv()
	desk := env.products.seed(&model.Product{Name: "Desk", BaseStock: 2})

	res, err := env.inventory.AdjustStock(context.Background(), StockAdjustment{
		Ref: regularRef(desk.ID), Delta: -10, ChangeType: model.ChangeTypeAdjustment,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.After)
	assert.Equal(t, 0, EffectiveStock(env.products.get(desk.ID)))
	assert.Equal(t, -2, env.logs.all()[0].QuantityChange, "logged change is the applied change")
}

func TestAdjustStock_AlertLifecycle(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	desk := env.products.seed(&model.Product{Name: "Desk", BaseStock: 12})

	adjust := func(delta int) {
		_, err := env.inventory.AdjustStock(ctx, StockAdjustment{Ref: regularRef(desk.ID), Delta: delta, ChangeType: model.ChangeTypeAdjustment})
		require.NoError(t, err)
	}

	adjust(-4) // 8: alert
	adjust(-1) // 7: same alert, updated stock
	alerts, _ := env.inventory.ListActiveAlerts(ctx)
	require.Len(t, alerts, 1)
	assert.Equal(t, 7, alerts[0].CurrentStock)

	adjust(10) // 17: resolved
	alerts, _ = env.inventory.ListActiveAlerts(ctx)
	assert.Empty(t, alerts)
	assert.Equal(t, []string{EventStockAlertCreated, EventStockAlertResolved}, env.publisher.names())
}

func TestAdjustStock_AlertUsesAggregateVariantStock(t *testing.T) {
	env := newTestEnv()
	sofa := env.products.seed(&model.Product{Name: "Sofa", Variants: []model.ProductVariant{
		{Value: "red", Stock: 3},
		{Value: "blue", Stock: 20},
	}})

	_, err := env.inventory.AdjustStock(context.Background(), StockAdjustment{
		Ref: variantRef(sofa.ID, sofa.Variants[0].ID), Delta: -3, ChangeType: model.ChangeTypeSale,
	})
	require.NoError(t, err)

	alerts, _ := env.inventory.ListActiveAlerts(context.Background())
	assert.Empty(t, alerts, "red is empty but the product still has 20 units")
}

func TestAdjustStock_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sofa := env.products.seed(&model.Product{Name: "Sofa", Variants: []model.ProductVariant{{Value: "red", Stock: 3}}})
	desk := env.products.seed(&model.Product{Name: "Desk", BaseStock: 3})

	tests := []struct {
		name  string
		req   StockAdjustment
		check func(error) bool
	}{
		{"zero delta", StockAdjustment{Ref: regularRef(desk.ID), Delta: 0, ChangeType: model.ChangeTypeSale}, apperror.IsValidation},
		{"unknown change type", StockAdjustment{Ref: regularRef(desk.ID), Delta: 1, ChangeType: "gift"}, apperror.IsValidation},
		{"variant product without variant", StockAdjustment{Ref: regularRef(sofa.ID), Delta: 1, ChangeType: model.ChangeTypeRestock}, apperror.IsValidation},
		{"variant on plain product", StockAdjustment{Ref: variantRef(desk.ID, uuid.New()), Delta: 1, ChangeType: model.ChangeTypeRestock}, apperror.IsValidation},
		{"unknown variant", StockAdjustment{Ref: variantRef(sofa.ID, uuid.New()), Delta: 1, ChangeType: model.ChangeTypeRestock}, apperror.IsNotFound},
		{"unknown product", StockAdjustment{Ref: model.ProductRef{ProductID: uuid.New()}, Delta: 1, ChangeType: model.ChangeTypeRestock}, apperror.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.inventory.AdjustStock(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
	assert.Empty(t, env.logs.all())
}

func TestAdjustStock_SpecialProductMovesBothSides(t *testing.T) {
	env := newTestEnv()
	frame := env.products.seed(&model.Product{Name: "Frame", Variants: []model.ProductVariant{{Value: "red", Stock: 5}}})
	cushion := env.products.seed(&model.Product{Name: "Cushion", BaseStock: 3})
	red := frame.Variants[0].ID
	sp := env.specials.seed(&model.SpecialProduct{
		Name:           "Sofa Set",
		BaseProductAID: frame.ID,
		BaseProductBID: cushion.ID,
		Combinations:   []model.Combination{{VariantAID: &red}},
	})
	comboID := sp.Combinations[0].ID

	res, err := env.inventory.AdjustStock(context.Background(), StockAdjustment{
		Ref:        model.ProductRef{Type: model.ProductTypeSpecial, ProductID: sp.ID, VariantAID: &red},
		Delta:      -2,
		ChangeType: model.ChangeTypeSale,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Before)
	assert.Equal(t, 1, res.After)

	assert.Equal(t, 3, VariantStock(env.products.get(frame.ID), red))
	assert.Equal(t, 1, env.products.get(cushion.ID).BaseStock)

	logs := env.logs.all()
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, model.ProductTypeSpecial, l.ProductType)
		assert.Equal(t, &sp.ID, l.SpecialProductID)
		assert.Equal(t, &comboID, l.CombinationID)
		assert.Equal(t, -2, l.QuantityChange)
	}
	assert.Equal(t, frame.ID, logs[0].ProductID)
	assert.Equal(t, &red, logs[0].VariantID)
	assert.Equal(t, cushion.ID, logs[1].ProductID)
	assert.Nil(t, logs[1].VariantID)
}

func TestAdjustStock_ConcurrentSalesNeverGoNegative(t *testing.T) {
	env := newTestEnv()
	desk := env.products.seed(&model.Product{Name: "Desk", BaseStock: 50})

	var g errgroup.Group
	for i := 0; i < 80; i++ {
		g.Go(func() error {
			_, err := env.inventory.AdjustStock(context.Background(), StockAdjustment{
				Ref: regularRef(desk.ID), Delta: -1, ChangeType: model.ChangeTypeSale,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 0, EffectiveStock(env.products.get(desk.ID)))
	applied := 0
	for _, l := range env.logs.all() {
		assert.GreaterOrEqual(t, l.QuantityAfter, 0)
		applied += l.QuantityChange
	}
	assert.Equal(t, -50, applied)
}

func TestValidateStock_ReportsEveryFailingLine(t *testing.T) {
	env := newTestEnv()
	desk := env.products.seed(&model.Product{Name: "Desk", BaseStock: 2})
	sofa := env.products.seed(&model.Product{Name: "Sofa", Variants: []model.ProductVariant{{Value: "red", Stock: 5}}})
	cushion := env.products.seed(&model.Product{Name: "Cushion", BaseStock: 3})
	red := sofa.Variants[0].ID
	sp := env.specials.seed(&model.SpecialProduct{
		Name: "Sofa Set", BaseProductAID: sofa.ID, BaseProductBID: cushion.ID,
		Combinations: []model.Combination{{VariantAID: &red}},
	})
	comboID := sp.Combinations[0].ID
	missing := uuid.New()

	issues, err := env.inventory.ValidateStock(context.Background(), []StockLine{
		{Ref: regularRef(desk.ID), Quantity: 2},
		{Ref: regularRef(desk.ID), Quantity: 3},
		{Ref: model.ProductRef{ProductID: missing}, Quantity: 1},
		{Ref: model.ProductRef{ProductID: sp.ID, CombinationID: &comboID}, Quantity: 4},
		{Ref: model.ProductRef{ProductID: sp.ID, CombinationID: &comboID}, Quantity: 3},
		{Ref: variantRef(sofa.ID, uuid.New()), Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, issues, 6)

	for i, issue := range issues {
		assert.Equal(t, i, issue.Line)
	}

	assert.Equal(t, apperror.IssueInsufficientStock, issues[0].Error, "fits alone, not with line 1")
	assert.Equal(t, apperror.IssueInsufficientStock, issues[1].Error)
	assert.Equal(t, 2, issues[1].Available)
	assert.Equal(t, "Desk", issues[1].ProductName)

	assert.Equal(t, apperror.IssueProductNotFound, issues[2].Error)

	assert.Equal(t, string(model.ProductTypeSpecial), issues[3].ProductType)
	assert.Equal(t, 3, issues[3].Available)
	assert.Equal(t, apperror.IssueInsufficientStock, issues[4].Error)

	assert.Equal(t, apperror.IssueProductNotFound, issues[5].Error)

	_, err = env.inventory.ValidateStock(context.Background(), []StockLine{{Ref: regularRef(desk.ID), Quantity: 0}})
	assert.True(t, apperror.IsValidation(err))
}

func TestValidateStock_CombinesLinesOnSharedRows(t *testing.T) {
	env := newTestEnv()
	chair := env.products.seed(&model.Product{Name: "Chair", Variants: []model.ProductVariant{{Value: "oak", Stock: 4}, {Value: "ash", Stock: 9}}})
	table := env.products.seed(&model.Product{Name: "Table", BaseStock: 3})
	oak := chair.Variants[0].ID
	ash := chair.Variants[1].ID
	set := env.specials.seed(&model.SpecialProduct{
		Name: "Dining Set", BaseProductAID: chair.ID, BaseProductBID: table.ID,
		Combinations: []model.Combination{{VariantAID: &oak}},
	})
	comboID := set.Combinations[0].ID
	ctx := context.Background()

	issues, err := env.inventory.ValidateStock(ctx, []StockLine{
		{Ref: variantRef(chair.ID, oak), Quantity: 3},
		{Ref: variantRef(chair.ID, ash), Quantity: 9},
	})
	require.NoError(t, err)
	assert.Empty(t, issues, "different variants do not compete")

	issues, err = env.inventory.ValidateStock(ctx, []StockLine{
		{Ref: variantRef(chair.ID, oak), Quantity: 3},
		{Ref: model.ProductRef{ProductID: set.ID, CombinationID: &comboID}, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 0, issues[0].Line)
	assert.Equal(t, 4, issues[0].Available)
	assert.Equal(t, 1, issues[1].Line)
	assert.Equal(t, 3, issues[1].Available)

	issues, err = env.inventory.ValidateStock(ctx, []StockLine{
		{Ref: regularRef(table.ID), Quantity: 1},
		{Ref: model.ProductRef{ProductID: set.ID, CombinationID: &comboID}, Quantity: 2},
	})
	require.NoError(t, err)
	assert.Empty(t, issues, "three tables requested, three in stock")
}

func TestAdjustStock_RequireStockRefusesShortfall(t *testing.T) {
	env := newTestEnv()
	desk := env.products.seed(&model.Product{Name: "Desk", BaseStock: 2})
	ctx := context.Background()

	_, err := env.inventory.AdjustStock(ctx, StockAdjustment{
		Ref: regularRef(desk.ID), Delta: -3, ChangeType: model.ChangeTypeSale, RequireStock: true,
	})
	require.True(t, apperror.IsInsufficientStock(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	require.Len(t, appErr.StockIssues, 1)
	assert.Equal(t, 3, appErr.StockIssues[0].Requested)
	assert.Equal(t, 2, appErr.StockIssues[0].Available)
	assert.Equal(t, 2, env.products.get(desk.ID).BaseStock)
	assert.Empty(t, env.logs.all())

	res, err := env.inventory.AdjustStock(ctx, StockAdjustment{
		Ref: regularRef(desk.ID), Delta: -2, ChangeType: model.ChangeTypeSale, RequireStock: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.After)

	res, err = env.inventory.AdjustStock(ctx, StockAdjustment{
		Ref: regularRef(desk.ID), Delta: 5, ChangeType: model.ChangeTypeRestock, RequireStock: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.After, "increases ignore the flag")
}

func TestResolveRef_FallsBackToSpecial(t *testing.T) {
	env := newTestEnv()
	a := env.products.seed(&model.Product{Name: "A", BaseStock: 1})
	b := env.products.seed(&model.Product{Name: "B", BaseStock: 1})
	sp := env.specials.seed(&model.SpecialProduct{Name: "AB", BaseProductAID: a.ID, BaseProductBID: b.ID})

	ref, err := env.inventory.ResolveRef(context.Background(), model.ProductRef{ProductID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, model.ProductTypeRegular, ref.Type)

	ref, err = env.inventory.ResolveRef(context.Background(), model.ProductRef{ProductID: sp.ID})
	require.NoError(t, err)
	assert.Equal(t, model.ProductTypeSpecial, ref.Type)

	_, err = env.inventory.ResolveRef(context.Background(), model.ProductRef{ProductID: a.ID, Type: "bundle"})
	assert.True(t, apperror.IsValidation(err))
}
