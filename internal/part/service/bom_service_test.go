package service

import (
	"context"
	"errors"
	"testing"
)

func TestBOMAddItemValidation(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	assembly := mustCreatePart(t, svc, &CreatePartInput{Name: "整机", Assembly: true})
	plain := mustCreatePart(t, svc, &CreatePartInput{Name: "普通件"})
	notComponent := false
	labor := mustCreatePart(t, svc, &CreatePartInput{Name: "服务项", Component: &notComponent})

	// 用量必须为正
	if _, err := svc.BOM.AddItem(ctx, assembly.ID, &AddItemInput{SubPartID: plain.ID, Quantity: 0}); !IsValidationError(err) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}

	// 非装配件不能维护BOM
	if _, err := svc.BOM.AddItem(ctx, plain.ID, &AddItemInput{SubPartID: assembly.ID, Quantity: 1}); !IsValidationError(err) {
		t.Fatalf("expected validation error for non-assembly parent, got %v", err)
	}

	// 非元器件不能作为子件
	if _, err := svc.BOM.AddItem(ctx, assembly.ID, &AddItemInput{SubPartID: labor.ID, Quantity: 1}); !IsValidationError(err) {
		t.Fatalf("expected validation error for non-component sub, got %v", err)
	}

	// 同一子件不能重复添加
	if _, err := svc.BOM.AddItem(ctx, assembly.ID, &AddItemInput{SubPartID: plain.ID, Quantity: 2}); err != nil {
		t.Fatalf("add bom item: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, assembly.ID, &AddItemInput{SubPartID: plain.ID, Quantity: 3}); !IsValidationError(err) {
		t.Fatalf("expected validation error for duplicate sub part, got %v", err)
	}
}

func TestBOMCycleRejected(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	a := mustCreatePart(t, svc, &CreatePartInput{Name: "组件A", Assembly: true})
	b := mustCreatePart(t, svc, &CreatePartInput{Name: "组件B", Assembly: true})
	c := mustCreatePart(t, svc, &CreatePartInput{Name: "组件C", Assembly: true})

	var cycleErr *CycleError

	// 自引用
	if _, err := svc.BOM.AddItem(ctx, a.ID, &AddItemInput{SubPartID: a.ID, Quantity: 1}); !errors.As(err, &cycleErr) {
		t.Fatalf("expected cycle error for self reference, got %v", err)
	}

	// A→B→C 后 C→A 成环
	if _, err := svc.BOM.AddItem(ctx, a.ID, &AddItemInput{SubPartID: b.ID, Quantity: 1}); err != nil {
		t.Fatalf("add A→B: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, b.ID, &AddItemInput{SubPartID: c.ID, Quantity: 1}); err != nil {
		t.Fatalf("add B→C: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, c.ID, &AddItemInput{SubPartID: a.ID, Quantity: 1}); !errors.As(err, &cycleErr) {
		t.Fatalf("expected cycle error for C→A, got %v", err)
	}
}

func TestBOMInheritedItems(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	template := mustCreatePart(t, svc, &CreatePartInput{Name: "机型模板", Assembly: true, IsTemplate: true})
	variant := mustCreatePart(t, svc, &CreatePartInput{Name: "机型 红色", Assembly: true, VariantOfID: &template.ID})
	shared := mustCreatePart(t, svc, &CreatePartInput{Name: "主板"})
	own := mustCreatePart(t, svc, &CreatePartInput{Name: "红色外壳"})

	if _, err := svc.BOM.AddItem(ctx, template.ID, &AddItemInput{SubPartID: shared.ID, Quantity: 1, Inherited: true}); err != nil {
		t.Fatalf("add inherited line: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, variant.ID, &AddItemInput{SubPartID: own.ID, Quantity: 1}); err != nil {
		t.Fatalf("add own line: %v", err)
	}

	// 不含下发行时只有自己的行
	direct, err := svc.BOM.ItemsFor(ctx, variant.ID, false)
	if err != nil || len(direct) != 1 {
		t.Fatalf("expected 1 direct line, got %d (%v)", len(direct), err)
	}

	// 含下发行时叠加模板的行
	all, err := svc.BOM.ItemsFor(ctx, variant.ID, true)
	if err != nil {
		t.Fatalf("items with inherited: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 effective lines, got %d", len(all))
	}

	// used-in 展开：主板的使用方包含模板与变体
	uses, err := svc.BOM.UsedIn(ctx, shared.ID, true)
	if err != nil {
		t.Fatalf("used in: %v", err)
	}
	users := map[string]bool{}
	for _, u := range uses {
		users[u.PartID] = true
	}
	if !users[template.ID] || !users[variant.ID] {
		t.Fatalf("expected used-in to cover template and variant, got %v", users)
	}
}

func TestBOMValidateAndIsValid(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	assembly := mustCreatePart(t, svc, &CreatePartInput{Name: "控制器", Assembly: true})
	sub := mustCreatePart(t, svc, &CreatePartInput{Name: "MCU"})
	item, err := svc.BOM.AddItem(ctx, assembly.ID, &AddItemInput{SubPartID: sub.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add bom item: %v", err)
	}

	// 未签核时不生效
	valid, err := svc.BOM.IsValid(ctx, assembly.ID)
	if err != nil {
		t.Fatalf("is valid: %v", err)
	}
	if valid {
		t.Fatal("expected unvalidated bom to be invalid")
	}

	if err := svc.BOM.Validate(ctx, assembly.ID, "checker-1"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	part, err := svc.Part.Get(ctx, assembly.ID)
	if err != nil {
		t.Fatalf("get part: %v", err)
	}
	if part.BOMChecksum == "" || part.BOMCheckedByID == nil || *part.BOMCheckedByID != "checker-1" {
		t.Fatalf("expected checksum and checker to be recorded, got %+v", part)
	}

	valid, err = svc.BOM.IsValid(ctx, assembly.ID)
	if err != nil || !valid {
		t.Fatalf("expected validated bom to be valid, got %v %v", valid, err)
	}

	// 改动用量后签核失效
	if _, err := svc.BOM.UpdateItem(ctx, item.ID, &UpdateItemInput{Quantity: float64Ptr(2)}); err != nil {
		t.Fatalf("update item: %v", err)
	}
	valid, err = svc.BOM.IsValid(ctx, assembly.ID)
	if err != nil {
		t.Fatalf("is valid: %v", err)
	}
	if valid {
		t.Fatal("expected modified bom to be invalid")
	}
}

func TestBOMCopyFrom(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	source := mustCreatePart(t, svc, &CreatePartInput{Name: "源机型", Assembly: true})
	target := mustCreatePart(t, svc, &CreatePartInput{Name: "新机型", Assembly: true})
	subA := mustCreatePart(t, svc, &CreatePartInput{Name: "子件A"})
	subB := mustCreatePart(t, svc, &CreatePartInput{Name: "子件B"})
	subC := mustCreatePart(t, svc, &CreatePartInput{Name: "子件C"})

	if _, err := svc.BOM.AddItem(ctx, source.ID, &AddItemInput{SubPartID: subA.ID, Quantity: 2}); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, source.ID, &AddItemInput{SubPartID: subB.ID, Quantity: 3}); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	// 目标已有一条同子件的行和一条无关行
	if _, err := svc.BOM.AddItem(ctx, target.ID, &AddItemInput{SubPartID: subA.ID, Quantity: 99}); err != nil {
		t.Fatalf("seed target: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, target.ID, &AddItemInput{SubPartID: subC.ID, Quantity: 1}); err != nil {
		t.Fatalf("seed target: %v", err)
	}

	// 不能从自身复制
	if err := svc.BOM.CopyFrom(ctx, target.ID, &CopyFromInput{SourcePartID: target.ID}); !IsValidationError(err) {
		t.Fatalf("expected self-copy rejection, got %v", err)
	}

	// clear=false：同子件的行被替换，无关行保留
	if err := svc.BOM.CopyFrom(ctx, target.ID, &CopyFromInput{SourcePartID: source.ID}); err != nil {
		t.Fatalf("copy from: %v", err)
	}
	items, err := svc.BOM.ItemsFor(ctx, target.ID, false)
	if err != nil {
		t.Fatalf("list bom items: %v", err)
	}
	quantities := map[string]float64{}
	for _, it := range items {
		quantities[it.SubPartID] = it.Quantity
	}
	if len(items) != 3 || quantities[subA.ID] != 2 || quantities[subB.ID] != 3 || quantities[subC.ID] != 1 {
		t.Fatalf("unexpected merged bom: %v", quantities)
	}

	// clear=true：目标先清空，结果与源完全一致
	if err := svc.BOM.CopyFrom(ctx, target.ID, &CopyFromInput{SourcePartID: source.ID, Clear: true}); err != nil {
		t.Fatalf("copy from with clear: %v", err)
	}
	items, _ = svc.BOM.ItemsFor(ctx, target.ID, false)
	if len(items) != 2 {
		t.Fatalf("expected 2 lines after clear copy, got %d", len(items))
	}
}

func TestRequiredParts(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	device := mustCreatePart(t, svc, &CreatePartInput{Name: "整机D", Assembly: true})
	module := mustCreatePart(t, svc, &CreatePartInput{Name: "模组M", Assembly: true})
	screw := mustCreatePart(t, svc, &CreatePartInput{Name: "螺丝"})

	// 整机含2个模组和4颗螺丝，每个模组又用3颗螺丝
	if _, err := svc.BOM.AddItem(ctx, device.ID, &AddItemInput{SubPartID: module.ID, Quantity: 2}); err != nil {
		t.Fatalf("seed bom: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, device.ID, &AddItemInput{SubPartID: screw.ID, Quantity: 4}); err != nil {
		t.Fatalf("seed bom: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, module.ID, &AddItemInput{SubPartID: screw.ID, Quantity: 3}); err != nil {
		t.Fatalf("seed bom: %v", err)
	}

	required, err := svc.BOM.RequiredParts(ctx, device.ID)
	if err != nil {
		t.Fatalf("required parts: %v", err)
	}
	totals := map[string]float64{}
	for _, r := range required {
		totals[r.Part.ID] = r.Quantity
	}
	if totals[module.ID] != 2 {
		t.Fatalf("expected 2 modules, got %v", totals[module.ID])
	}
	// 4 + 2×3 = 10
	if totals[screw.ID] != 10 {
		t.Fatalf("expected 10 screws, got %v", totals[screw.ID])
	}
}

func TestBOMHashStableAcrossInsertOrder(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	a := mustCreatePart(t, svc, &CreatePartInput{Name: "装配a", Assembly: true})
	b := mustCreatePart(t, svc, &CreatePartInput{Name: "装配b", Assembly: true})
	s1 := mustCreatePart(t, svc, &CreatePartInput{Name: "散件1"})
	s2 := mustCreatePart(t, svc, &CreatePartInput{Name: "散件2"})

	// 相同行、不同插入顺序
	if _, err := svc.BOM.AddItem(ctx, a.ID, &AddItemInput{SubPartID: s1.ID, Quantity: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, a.ID, &AddItemInput{SubPartID: s2.ID, Quantity: 2}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, b.ID, &AddItemInput{SubPartID: s2.ID, Quantity: 2}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, b.ID, &AddItemInput{SubPartID: s1.ID, Quantity: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	hashA1, err := svc.BOM.Hash(ctx, a.ID)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hashA2, err := svc.BOM.Hash(ctx, a.ID)
	if err != nil {
		t.Fatalf("hash bom: %v", err)
	}
	if hashA1 != hashA2 {
		t.Fatal("expected hash to be deterministic")
	}

	// 哈希包含零件自身ID，不同零件即使行相同也不同
	hashB, err := svc.BOM.Hash(ctx, b.ID)
	if err != nil {
		t.Fatalf("hash bom: %v", err)
	}
	if hashA1 == hashB {
		t.Fatal("expected hash to be scoped to the owning part")
	}
}

func float64Ptr(v float64) *float64 { return &v }
