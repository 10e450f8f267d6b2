package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/partstock/internal/config"
	orderentity "github.com/bitfantasy/partstock/internal/order/entity"
	orderrepo "github.com/bitfantasy/partstock/internal/order/repository"
	partentity "github.com/bitfantasy/partstock/internal/part/entity"
	partrepo "github.com/bitfantasy/partstock/internal/part/repository"
	partsvc "github.com/bitfantasy/partstock/internal/part/service"
	"github.com/bitfantasy/partstock/internal/part/testutil"
	stockentity "github.com/bitfantasy/partstock/internal/stock/entity"
	"github.com/bitfantasy/partstock/internal/stock/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupStockTest(t *testing.T) (*gorm.DB, *partsvc.Services, *StockService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	partRepos := partrepo.NewRepositories(db)
	orderRepos := orderrepo.NewRepositories(db)
	cfg := &config.Config{Part: config.PartConfig{}}
	services := partsvc.NewServices(db, partRepos, orderRepos, nil, cfg, zap.NewNop())
	stockSvc := NewStockService(repository.NewStockRepository(db), partRepos.Part, services.BOM, orderRepos)
	return db, services, stockSvc
}

func mustCreatePart(t *testing.T, svc *partsvc.Services, input *partsvc.CreatePartInput) *partentity.Part {
	t.Helper()
	part, err := svc.Part.Create(context.Background(), input, "")
	if err != nil {
		t.Fatalf("create part %q: %v", input.Name, err)
	}
	return part
}

func seedBuildOrder(t *testing.T, db *gorm.DB, partID string, qty, completed float64, status string) *orderentity.BuildOrder {
	t.Helper()
	build := &orderentity.BuildOrder{
		ID:        uuid.New().String()[:32],
		Reference: "BO-" + uuid.New().String()[:8],
		PartID:    partID,
		Quantity:  qty,
		Completed: completed,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(build).Error; err != nil {
		t.Fatalf("seed build order: %v", err)
	}
	return build
}

func seedPurchaseLine(t *testing.T, db *gorm.DB, partID string, ordered, received float64, status string) {
	t.Helper()
	supplier := &orderentity.Company{
		ID:         uuid.New().String()[:32],
		Name:       "供应商-" + uuid.New().String()[:8],
		IsSupplier: true,
		Active:     true,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(supplier).Error; err != nil {
		t.Fatalf("seed supplier: %v", err)
	}
	sp := &orderentity.SupplierPart{
		ID:         uuid.New().String()[:32],
		PartID:     partID,
		SupplierID: supplier.ID,
		SKU:        "SKU-" + uuid.New().String()[:8],
		Active:     true,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(sp).Error; err != nil {
		t.Fatalf("seed supplier part: %v", err)
	}
	po := &orderentity.PurchaseOrder{
		ID:         uuid.New().String()[:32],
		Reference:  "PO-" + uuid.New().String()[:8],
		SupplierID: supplier.ID,
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(po).Error; err != nil {
		t.Fatalf("seed purchase order: %v", err)
	}
	line := &orderentity.PurchaseOrderLine{
		ID:             uuid.New().String()[:32],
		OrderID:        po.ID,
		SupplierPartID: sp.ID,
		Quantity:       ordered,
		Received:       received,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := db.Create(line).Error; err != nil {
		t.Fatalf("seed purchase line: %v", err)
	}
}

func seedSalesLine(t *testing.T, db *gorm.DB, partID string, qty, shipped float64, status string) *orderentity.SalesOrderLine {
	t.Helper()
	so := &orderentity.SalesOrder{
		ID:        uuid.New().String()[:32],
		Reference: "SO-" + uuid.New().String()[:8],
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(so).Error; err != nil {
		t.Fatalf("seed sales order: %v", err)
	}
	line := &orderentity.SalesOrderLine{
		ID:        uuid.New().String()[:32],
		OrderID:   so.ID,
		PartID:    partID,
		Quantity:  qty,
		Shipped:   shipped,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(line).Error; err != nil {
		t.Fatalf("seed sales line: %v", err)
	}
	return line
}

func TestStockAggregation(t *testing.T) {
	db, svc, stockSvc := setupStockTest(t)
	ctx := context.Background()

	widget, err := svc.Part.Create(ctx, &partsvc.CreatePartInput{Name: "Widget", MinimumStock: 25}, "")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	loc := testutil.SeedLocation(t, db, "主仓")

	item1 := testutil.SeedStock(t, db, widget.ID, loc.ID, 15, nil)
	testutil.SeedStock(t, db, widget.ID, loc.ID, 5, nil)
	// 已发货和报废的记录不计入
	customer := "cust-1"
	testutil.SeedStock(t, db, widget.ID, loc.ID, 99, func(s *stockentity.StockItem) {
		s.CustomerID = &customer
	})
	testutil.SeedStock(t, db, widget.ID, loc.ID, 50, func(s *stockentity.StockItem) {
		s.Status = stockentity.StockStatusDestroyed
	})

	total, err := stockSvc.TotalStock(ctx, widget.ID)
	if err != nil {
		t.Fatalf("total stock: %v", err)
	}
	if total != 20 {
		t.Fatalf("expected total 20, got %v", total)
	}

	// 在途：未结采购单 10-2=8；已完结的不算
	seedPurchaseLine(t, db, widget.ID, 10, 2, orderentity.PurchaseStatusPlaced)
	seedPurchaseLine(t, db, widget.ID, 100, 100, orderentity.PurchaseStatusComplete)
	onOrder, err := stockSvc.OnOrder(ctx, widget.ID)
	if err != nil {
		t.Fatalf("on order: %v", err)
	}
	if onOrder != 8 {
		t.Fatalf("expected on-order 8, got %v", onOrder)
	}

	// 在产：widget自身工单 10-3=7
	seedBuildOrder(t, db, widget.ID, 10, 3, orderentity.BuildStatusProduction)
	building, err := stockSvc.QuantityBeingBuilt(ctx, widget.ID)
	if err != nil {
		t.Fatalf("being built: %v", err)
	}
	if building != 7 {
		t.Fatalf("expected being-built 7, got %v", building)
	}

	// 需求侧：装配件含2个widget，在产10台 → 20；销售单未出货30
	machine := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "Machine", Assembly: true})
	if _, err := svc.BOM.AddItem(ctx, machine.ID, &partsvc.AddItemInput{SubPartID: widget.ID, Quantity: 2}); err != nil {
		t.Fatalf("add bom item: %v", err)
	}
	machineBuild := seedBuildOrder(t, db, machine.ID, 10, 0, orderentity.BuildStatusPending)
	salesLine := seedSalesLine(t, db, widget.ID, 30, 0, orderentity.SalesStatusPending)

	required, err := stockSvc.RequiredForOrders(ctx, widget.ID)
	if err != nil {
		t.Fatalf("required for orders: %v", err)
	}
	if required != 50 {
		t.Fatalf("expected required 50, got %v", required)
	}

	// 建议补货量 = 50 - max(20, 25) - 8 - 7 = 10
	toOrder, err := stockSvc.QuantityToOrder(ctx, widget.ID)
	if err != nil {
		t.Fatalf("quantity to order: %v", err)
	}
	if toOrder != 10 {
		t.Fatalf("expected quantity-to-order 10, got %v", toOrder)
	}
	restock, err := stockSvc.NeedToRestock(ctx, widget.ID)
	if err != nil {
		t.Fatalf("need to restock: %v", err)
	}
	if !restock {
		t.Fatal("expected part to need restocking")
	}

	// 占用：工单5 + 销售3
	if err := db.Create(&orderentity.BuildItem{
		ID:          uuid.New().String()[:32],
		BuildID:     machineBuild.ID,
		StockItemID: item1.ID,
		Quantity:    5,
		CreatedAt:   time.Now(),
	}).Error; err != nil {
		t.Fatalf("seed build allocation: %v", err)
	}
	if err := db.Create(&orderentity.SalesOrderAllocation{
		ID:          uuid.New().String()[:32],
		LineID:      salesLine.ID,
		StockItemID: item1.ID,
		Quantity:    3,
		CreatedAt:   time.Now(),
	}).Error; err != nil {
		t.Fatalf("seed sales allocation: %v", err)
	}

	available, err := stockSvc.AvailableStock(ctx, widget.ID)
	if err != nil {
		t.Fatalf("available stock: %v", err)
	}
	if available != 12 {
		t.Fatalf("expected available 12, got %v", available)
	}

	net, err := stockSvc.NetStock(ctx, widget.ID)
	if err != nil {
		t.Fatalf("net stock: %v", err)
	}
	if net != 20 {
		t.Fatalf("expected net 20, got %v", net)
	}
}

func TestRequiredForOrdersUsesFullQuantities(t *testing.T) {
	db, svc, stockSvc := setupStockTest(t)
	ctx := context.Background()

	bolt, err := svc.Part.Create(ctx, &partsvc.CreatePartInput{Name: "六角螺栓"}, "")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	frame, err := svc.Part.Create(ctx, &partsvc.CreatePartInput{Name: "框架", Assembly: true}, "")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, frame.ID, &partsvc.AddItemInput{SubPartID: bolt.ID, Quantity: 2}); err != nil {
		t.Fatalf("add bom item: %v", err)
	}

	// 需求按工单计划总量算，已完工部分只体现在在产数量里，不得重复扣减
	seedBuildOrder(t, db, frame.ID, 10, 4, orderentity.BuildStatusProduction)
	buildReq, err := stockSvc.RequiredBuildOrderQuantity(ctx, bolt.ID)
	if err != nil {
		t.Fatalf("build requirement: %v", err)
	}
	if buildReq != 20 {
		t.Fatalf("expected build requirement 20, got %v", buildReq)
	}

	// 销售需求同理按订单行全量算，不扣已出货
	seedSalesLine(t, db, bolt.ID, 10, 6, orderentity.SalesStatusPending)
	salesReq, err := stockSvc.RequiredSalesOrderQuantity(ctx, bolt.ID)
	if err != nil {
		t.Fatalf("sales requirement: %v", err)
	}
	if salesReq != 10 {
		t.Fatalf("expected sales requirement 10, got %v", salesReq)
	}

	required, err := stockSvc.RequiredForOrders(ctx, bolt.ID)
	if err != nil {
		t.Fatalf("required for orders: %v", err)
	}
	if required != 30 {
		t.Fatalf("expected required 30, got %v", required)
	}
}

func TestAvailableStockFloorsAtZero(t *testing.T) {
	db, svc, stockSvc := setupStockTest(t)
	ctx := context.Background()

	part := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "超配件"})
	item := testutil.SeedStock(t, db, part.ID, "", 2, nil)

	build := seedBuildOrder(t, db, part.ID, 1, 0, orderentity.BuildStatusPending)
	if err := db.Create(&orderentity.BuildItem{
		ID:          uuid.New().String()[:32],
		BuildID:     build.ID,
		StockItemID: item.ID,
		Quantity:    5,
		CreatedAt:   time.Now(),
	}).Error; err != nil {
		t.Fatalf("seed allocation: %v", err)
	}

	available, err := stockSvc.AvailableStock(ctx, part.ID)
	if err != nil {
		t.Fatalf("available stock: %v", err)
	}
	if available != 0 {
		t.Fatalf("expected available floored to 0, got %v", available)
	}

	// 净库存允许为负
	net, err := stockSvc.NetStock(ctx, part.ID)
	if err != nil {
		t.Fatalf("net stock: %v", err)
	}
	if net != -3 {
		t.Fatalf("expected net -3, got %v", net)
	}
}

func TestTotalStockIncludesVariants(t *testing.T) {
	db, svc, stockSvc := setupStockTest(t)
	ctx := context.Background()

	template := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "鞋模板", IsTemplate: true})
	variant := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "鞋 42码", VariantOfID: &template.ID})

	testutil.SeedStock(t, db, template.ID, "", 3, nil)
	testutil.SeedStock(t, db, variant.ID, "", 4, nil)

	total, err := stockSvc.TotalStock(ctx, template.ID)
	if err != nil {
		t.Fatalf("total stock: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected template total to include variants, got %v", total)
	}

	// 变体自身只看自己
	total, err = stockSvc.TotalStock(ctx, variant.ID)
	if err != nil {
		t.Fatalf("total stock: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected variant total 4, got %v", total)
	}
}

func TestCanBuild(t *testing.T) {
	db, svc, stockSvc := setupStockTest(t)
	ctx := context.Background()

	frame := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "Frame", Assembly: true})
	tube := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "钢管"})
	joint := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "接头"})

	// 无BOM时不可生产
	canBuild, err := stockSvc.CanBuild(ctx, frame.ID)
	if err != nil {
		t.Fatalf("can build: %v", err)
	}
	if canBuild != 0 {
		t.Fatalf("expected 0 without bom, got %v", canBuild)
	}

	if _, err := svc.BOM.AddItem(ctx, frame.ID, &partsvc.AddItemInput{SubPartID: tube.ID, Quantity: 2}); err != nil {
		t.Fatalf("seed bom: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, frame.ID, &partsvc.AddItemInput{SubPartID: joint.ID, Quantity: 3}); err != nil {
		t.Fatalf("seed bom: %v", err)
	}
	testutil.SeedStock(t, db, tube.ID, "", 10, nil)
	testutil.SeedStock(t, db, joint.ID, "", 17, nil)

	// min(floor(10/2), floor(17/3)) = min(5, 5) = 5
	canBuild, err = stockSvc.CanBuild(ctx, frame.ID)
	if err != nil {
		t.Fatalf("can build: %v", err)
	}
	if canBuild != 5 {
		t.Fatalf("expected can-build 5, got %v", canBuild)
	}
}

func TestSerialNumbers(t *testing.T) {
	db, svc, stockSvc := setupStockTest(t)
	ctx := context.Background()

	phone := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "手机", IsTemplate: true, Trackable: true})
	variant := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "手机 黑色", VariantOfID: &phone.ID})

	// 无序列号时从1起算，单个与批量的措辞不同
	msg, err := stockSvc.NextSerialNumbers(ctx, phone.ID, 1)
	if err != nil {
		t.Fatalf("next serials: %v", err)
	}
	if msg != "Next available serial number is 1" {
		t.Fatalf("unexpected message: %q", msg)
	}
	msg, err = stockSvc.NextSerialNumbers(ctx, phone.ID, 2)
	if err != nil {
		t.Fatalf("next serials: %v", err)
	}
	if msg != "Next available serial numbers are 1 - 3" {
		t.Fatalf("unexpected message: %q", msg)
	}

	// 同一棵树内的序列号共同参与排序，全数字取最大
	base := time.Now().Add(-time.Hour)
	for i, serial := range []string{"3", "7", "1"} {
		s := serial
		created := base.Add(time.Duration(i) * time.Minute)
		partID := phone.ID
		if i == 1 {
			partID = variant.ID
		}
		testutil.SeedStock(t, db, partID, "", 1, func(it *stockentity.StockItem) {
			it.Serial = &s
			it.CreatedAt = created
		})
	}

	latest, err := stockSvc.LatestSerialNumber(ctx, phone.ID)
	if err != nil {
		t.Fatalf("latest serial: %v", err)
	}
	if latest == nil || *latest != "7" {
		t.Fatalf("expected latest serial 7, got %v", latest)
	}

	msg, err = stockSvc.NextSerialNumbers(ctx, phone.ID, 2)
	if err != nil {
		t.Fatalf("next serials: %v", err)
	}
	if msg != "Next available serial numbers are 8 - 10" {
		t.Fatalf("unexpected message: %q", msg)
	}

	// 出现非数字序列号后，退回最近创建的一条
	abc := "ABC-9"
	testutil.SeedStock(t, db, variant.ID, "", 1, func(it *stockentity.StockItem) {
		it.Serial = &abc
		it.CreatedAt = base.Add(time.Hour)
	})
	latest, err = stockSvc.LatestSerialNumber(ctx, phone.ID)
	if err != nil {
		t.Fatalf("latest serial: %v", err)
	}
	if latest == nil || *latest != "ABC-9" {
		t.Fatalf("expected latest ABC-9, got %v", latest)
	}
	msg, _ = stockSvc.NextSerialNumbers(ctx, phone.ID, 1)
	if msg != "Most recent serial number is ABC-9" {
		t.Fatalf("unexpected message: %q", msg)
	}

	// 冲突检查覆盖整棵树，包括变体上的序列号
	conflicts, err := stockSvc.ConflictingSerials(ctx, phone.ID, []string{"7", "ABC-9", "42"})
	if err != nil {
		t.Fatalf("conflicting serials: %v", err)
	}
	if len(conflicts) != 2 || conflicts[0] != "7" || conflicts[1] != "ABC-9" {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
}

func TestAddStockValidation(t *testing.T) {
	db, svc, stockSvc := setupStockTest(t)
	ctx := context.Background()

	virtualPart := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "软件授权", Virtual: true})
	plain := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "普通螺母"})
	tracked := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "带码整机", IsTemplate: true, Trackable: true})
	trackedVariant := mustCreatePart(t, svc, &partsvc.CreatePartInput{Name: "带码整机 银色", VariantOfID: &tracked.ID})

	// 虚拟零件不能入库
	if _, err := stockSvc.AddStock(ctx, &AddStockInput{PartID: virtualPart.ID, Quantity: 1}); !partsvc.IsValidationError(err) {
		t.Fatalf("expected virtual part rejection, got %v", err)
	}

	// 数量必须为正
	if _, err := stockSvc.AddStock(ctx, &AddStockInput{PartID: plain.ID, Quantity: -1}); !partsvc.IsValidationError(err) {
		t.Fatalf("expected negative quantity rejection, got %v", err)
	}

	// 不可追溯零件不能带序列号
	serial := "SN-001"
	if _, err := stockSvc.AddStock(ctx, &AddStockInput{PartID: plain.ID, Quantity: 1, Serial: &serial}); !partsvc.IsValidationError(err) {
		t.Fatalf("expected serial on non-trackable rejection, got %v", err)
	}

	// 带序列号必须数量为1
	if _, err := stockSvc.AddStock(ctx, &AddStockInput{PartID: tracked.ID, Quantity: 2, Serial: &serial}); !partsvc.IsValidationError(err) {
		t.Fatalf("expected serialized quantity rejection, got %v", err)
	}

	// 库位必须存在
	missing := "no-such-location"
	if _, err := stockSvc.AddStock(ctx, &AddStockInput{PartID: plain.ID, Quantity: 1, LocationID: &missing}); !partsvc.IsValidationError(err) {
		t.Fatalf("expected missing location rejection, got %v", err)
	}

	// 正常入库
	loc := testutil.SeedLocation(t, db, "成品仓")
	item, err := stockSvc.AddStock(ctx, &AddStockInput{PartID: tracked.ID, Quantity: 1, Serial: &serial, LocationID: &loc.ID})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if item.Status != stockentity.StockStatusOK {
		t.Fatalf("expected OK status, got %s", item.Status)
	}

	// 序列号在整棵变体树内唯一
	if _, err := stockSvc.AddStock(ctx, &AddStockInput{PartID: trackedVariant.ID, Quantity: 1, Serial: &serial}); !partsvc.IsValidationError(err) {
		t.Fatalf("expected duplicate serial rejection across tree, got %v", err)
	}
}

func TestCreateLocation(t *testing.T) {
	_, _, stockSvc := setupStockTest(t)
	ctx := context.Background()

	root, err := stockSvc.CreateLocation(ctx, &CreateLocationInput{Name: "总仓"})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	child, err := stockSvc.CreateLocation(ctx, &CreateLocationInput{Name: "A区", ParentID: &root.ID})
	if err != nil {
		t.Fatalf("create child location: %v", err)
	}
	if child.ParentID == nil || *child.ParentID != root.ID {
		t.Fatalf("expected child to reference parent, got %+v", child)
	}

	missing := "nope"
	if _, err := stockSvc.CreateLocation(ctx, &CreateLocationInput{Name: "孤立区", ParentID: &missing}); err == nil {
		t.Fatal("expected missing parent rejection")
	}
}
