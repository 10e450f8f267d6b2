package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/partstock/internal/config"
	orderrepo "github.com/bitfantasy/partstock/internal/order/repository"
	"github.com/bitfantasy/partstock/internal/part/entity"
	"github.com/bitfantasy/partstock/internal/part/repository"
	"github.com/bitfantasy/partstock/internal/part/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPartTest(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	orderRepos := orderrepo.NewRepositories(db)
	cfg := &config.Config{Part: config.PartConfig{CopyCategoryTemplates: true}}
	svc := NewServices(db, repos, orderRepos, nil, cfg, zap.NewNop())
	return db, svc
}

func mustCreatePart(t *testing.T, svc *Services, input *CreatePartInput) *entity.Part {
	t.Helper()
	part, err := svc.Part.Create(context.Background(), input, "")
	if err != nil {
		t.Fatalf("create part %q: %v", input.Name, err)
	}
	return part
}

func mustCreateTemplate(t *testing.T, svc *Services, input *CreateTemplateInput) *entity.PartParameterTemplate {
	t.Helper()
	tpl, err := svc.Parameter.CreateTemplate(context.Background(), input)
	if err != nil {
		t.Fatalf("create template %q: %v", input.Name, err)
	}
	return tpl
}

func mustCreateCategory(t *testing.T, svc *Services, input *CreateCategoryInput) *entity.PartCategory {
	t.Helper()
	cat, err := svc.Category.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create category %q: %v", input.Name, err)
	}
	return cat
}

func TestPartCreateDefaults(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	part, err := svc.Part.Create(ctx, &CreatePartInput{Name: "电阻 10K"}, "test-user")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if part.Units != "pcs" {
		t.Fatalf("expected default units pcs, got %q", part.Units)
	}
	if part.TreeID != part.ID {
		t.Fatalf("expected standalone part to root its own tree, got tree %s", part.TreeID)
	}
	if !part.Component || !part.Purchaseable {
		t.Fatal("expected component and purchaseable defaults to be true")
	}
	if !part.Active {
		t.Fatal("expected new part to be active")
	}

	// 显式关掉的标志要原样落库，不能被建表默认值覆盖
	off := false
	labor, err := svc.Part.Create(ctx, &CreatePartInput{Name: "装配工时", Component: &off, Purchaseable: &off}, "test-user")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	stored, err := svc.Part.Get(ctx, labor.ID)
	if err != nil {
		t.Fatalf("get part: %v", err)
	}
	if stored.Component || stored.Purchaseable {
		t.Fatal("expected explicit false flags to persist")
	}
}

func TestPartNameIllegalChars(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	for _, name := range []string{"bad/name", "bad|name", "bad<name>", "bad`name"} {
		if _, err := svc.Part.Create(ctx, &CreatePartInput{Name: name}, ""); !IsValidationError(err) {
			t.Fatalf("expected validation error for name %q, got %v", name, err)
		}
	}
}

func TestPartUniqueness(t *testing.T) {
	db, svc := setupPartTest(t)
	ctx := context.Background()

	if _, err := svc.Part.Create(ctx, &CreatePartInput{Name: "Widget", IPN: "W-001", Revision: "A"}, ""); err != nil {
		t.Fatalf("create part: %v", err)
	}

	// 名称+料号+版本完全相同（忽略大小写）应被拒绝
	if _, err := svc.Part.Create(ctx, &CreatePartInput{Name: "widget", IPN: "w-001", Revision: "a"}, ""); !IsValidationError(err) {
		t.Fatalf("expected duplicate part rejection, got %v", err)
	}

	// 默认配置下料号不允许复用
	if _, err := svc.Part.Create(ctx, &CreatePartInput{Name: "Widget v2", IPN: "W-001"}, ""); !IsValidationError(err) {
		t.Fatalf("expected duplicate IPN rejection, got %v", err)
	}

	// 放开配置后允许重复料号
	repos := repository.NewRepositories(db)
	loose := NewPartService(repos, config.PartConfig{AllowDuplicateIPN: true}, svc.BOM, svc.Parameter)
	if _, err := loose.Create(ctx, &CreatePartInput{Name: "Widget v2", IPN: "W-001"}, ""); err != nil {
		t.Fatalf("expected duplicate IPN to be allowed, got %v", err)
	}
}

func TestPartVariantTree(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	template, err := svc.Part.Create(ctx, &CreatePartInput{Name: "T恤", IsTemplate: true, Trackable: true}, "")
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	variant, err := svc.Part.Create(ctx, &CreatePartInput{Name: "T恤 红色 L", VariantOfID: &template.ID}, "")
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}

	if variant.TreeID != template.TreeID {
		t.Fatalf("expected variant to join parent tree %s, got %s", template.TreeID, variant.TreeID)
	}
	if !variant.Trackable {
		t.Fatal("expected variant to inherit trackable from parent")
	}

	ancestors, err := svc.Part.Ancestors(ctx, variant.ID)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 1 || ancestors[0].ID != template.ID {
		t.Fatalf("expected single ancestor %s, got %v", template.ID, ancestors)
	}

	descendants, err := svc.Part.Descendants(ctx, template.ID)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(descendants) != 1 || descendants[0].ID != variant.ID {
		t.Fatalf("expected single descendant %s", variant.ID)
	}
}

func TestSetVariantOfRejectsCycle(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	root := mustCreatePart(t, svc, &CreatePartInput{Name: "根模板", IsTemplate: true})
	child := mustCreatePart(t, svc, &CreatePartInput{Name: "子变体", VariantOfID: &root.ID})

	// 自身不能作父节点
	if _, err := svc.Part.SetVariantOf(ctx, root.ID, &root.ID); err == nil {
		t.Fatal("expected self-parent to be rejected")
	}

	// 后代不能作父节点
	var cycleErr *CycleError
	if _, err := svc.Part.SetVariantOf(ctx, root.ID, &child.ID); !errors.As(err, &cycleErr) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestSetVariantOfMigratesSubtree(t *testing.T) {
	db, svc := setupPartTest(t)
	ctx := context.Background()

	treeA := mustCreatePart(t, svc, &CreatePartInput{Name: "树A", IsTemplate: true})
	treeB := mustCreatePart(t, svc, &CreatePartInput{Name: "树B", IsTemplate: true})
	mid := mustCreatePart(t, svc, &CreatePartInput{Name: "中间节点", VariantOfID: &treeA.ID})
	leaf := mustCreatePart(t, svc, &CreatePartInput{Name: "叶节点", VariantOfID: &mid.ID})

	moved, err := svc.Part.SetVariantOf(ctx, mid.ID, &treeB.ID)
	if err != nil {
		t.Fatalf("set variant parent: %v", err)
	}
	if moved.TreeID != treeB.TreeID {
		t.Fatalf("expected moved node tree %s, got %s", treeB.TreeID, moved.TreeID)
	}

	// 整棵子树跟随迁移
	var got entity.Part
	if err := db.First(&got, "id = ?", leaf.ID).Error; err != nil {
		t.Fatalf("reload leaf: %v", err)
	}
	if got.TreeID != treeB.TreeID {
		t.Fatalf("expected leaf tree %s, got %s", treeB.TreeID, got.TreeID)
	}

	// 脱离父节点后自成一树
	detached, err := svc.Part.SetVariantOf(ctx, mid.ID, nil)
	if err != nil {
		t.Fatalf("detach variant: %v", err)
	}
	if detached.TreeID != mid.ID {
		t.Fatalf("expected detached node to root its own tree, got %s", detached.TreeID)
	}
}

func TestSetTrackablePropagatesToAssemblies(t *testing.T) {
	db, svc := setupPartTest(t)
	ctx := context.Background()

	sub := mustCreatePart(t, svc, &CreatePartInput{Name: "电池芯"})
	pack := mustCreatePart(t, svc, &CreatePartInput{Name: "电池包", Assembly: true})
	device := mustCreatePart(t, svc, &CreatePartInput{Name: "整机", Assembly: true})

	if _, err := svc.BOM.AddItem(ctx, pack.ID, &AddItemInput{SubPartID: sub.ID, Quantity: 4}); err != nil {
		t.Fatalf("add bom item: %v", err)
	}
	if _, err := svc.BOM.AddItem(ctx, device.ID, &AddItemInput{SubPartID: pack.ID, Quantity: 1}); err != nil {
		t.Fatalf("add bom item: %v", err)
	}

	if err := svc.Part.SetTrackable(ctx, sub.ID, true); err != nil {
		t.Fatalf("set trackable: %v", err)
	}

	for _, id := range []string{sub.ID, pack.ID, device.ID} {
		var got entity.Part
		if err := db.First(&got, "id = ?", id).Error; err != nil {
			t.Fatalf("reload part: %v", err)
		}
		if !got.Trackable {
			t.Fatalf("expected part %s to become trackable", got.Name)
		}
	}
}

func TestPartStar(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	part := mustCreatePart(t, svc, &CreatePartInput{Name: "收藏对象"})

	if err := svc.Part.Star(ctx, part.ID, "user-1"); err != nil {
		t.Fatalf("star: %v", err)
	}
	// 重复收藏不报错
	if err := svc.Part.Star(ctx, part.ID, "user-1"); err != nil {
		t.Fatalf("repeated star: %v", err)
	}

	starred, err := svc.Part.IsStarred(ctx, part.ID, "user-1")
	if err != nil || !starred {
		t.Fatalf("expected starred, got %v %v", starred, err)
	}

	if err := svc.Part.Unstar(ctx, part.ID, "user-1"); err != nil {
		t.Fatalf("unstar: %v", err)
	}
	starred, _ = svc.Part.IsStarred(ctx, part.ID, "user-1")
	if starred {
		t.Fatal("expected unstarred")
	}
}

func TestDeepCopy(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	source := mustCreatePart(t, svc, &CreatePartInput{Name: "原型机", Assembly: true})
	sub := mustCreatePart(t, svc, &CreatePartInput{Name: "外壳"})
	if _, err := svc.BOM.AddItem(ctx, source.ID, &AddItemInput{SubPartID: sub.ID, Quantity: 2, Reference: "C1"}); err != nil {
		t.Fatalf("add bom item: %v", err)
	}
	tpl := mustCreateTemplate(t, svc, &CreateTemplateInput{Name: "重量", Units: "g"})
	if _, err := svc.Parameter.Add(ctx, source.ID, &AddInput{TemplateID: tpl.ID, Value: "120"}); err != nil {
		t.Fatalf("add parameter: %v", err)
	}

	copied, err := svc.Part.DeepCopy(ctx, source.ID, &DeepCopyInput{
		Name:           "量产机",
		CopyBOM:        true,
		CopyParameters: true,
	}, "test-user")
	if err != nil {
		t.Fatalf("deep copy: %v", err)
	}
	if copied.TreeID != copied.ID {
		t.Fatal("expected copied part to root its own tree")
	}
	if !copied.Assembly {
		t.Fatal("expected assembly flag to carry over")
	}

	items, err := svc.BOM.ItemsFor(ctx, copied.ID, false)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected 1 copied bom line, got %d (%v)", len(items), err)
	}
	if items[0].Reference != "C1" || items[0].Quantity != 2 {
		t.Fatalf("unexpected copied line: %+v", items[0])
	}
	if items[0].Checksum != "" {
		t.Fatal("expected copied line checksum to be cleared")
	}

	params, err := svc.Parameter.ListFor(ctx, copied.ID)
	if err != nil || len(params) != 1 {
		t.Fatalf("expected 1 copied parameter, got %d (%v)", len(params), err)
	}
	if params[0].Value != "120" {
		t.Fatalf("unexpected copied parameter value %q", params[0].Value)
	}
}

func TestCreateAppliesCategoryTemplates(t *testing.T) {
	_, svc := setupPartTest(t)
	ctx := context.Background()

	parentCat := mustCreateCategory(t, svc, &CreateCategoryInput{Name: "电子件"})
	childCat := mustCreateCategory(t, svc, &CreateCategoryInput{Name: "电阻", ParentID: &parentCat.ID})

	tplShared := mustCreateTemplate(t, svc, &CreateTemplateInput{Name: "封装"})
	tplParent := mustCreateTemplate(t, svc, &CreateTemplateInput{Name: "耐压", Units: "V"})

	// 同一模板在父子分类都挂接时，取最近一层的默认值
	if _, err := svc.Category.AttachTemplate(ctx, parentCat.ID, &AttachTemplateInput{TemplateID: tplShared.ID, DefaultValue: "DIP"}); err != nil {
		t.Fatalf("attach template: %v", err)
	}
	if _, err := svc.Category.AttachTemplate(ctx, childCat.ID, &AttachTemplateInput{TemplateID: tplShared.ID, DefaultValue: "0402"}); err != nil {
		t.Fatalf("attach template: %v", err)
	}
	if _, err := svc.Category.AttachTemplate(ctx, parentCat.ID, &AttachTemplateInput{TemplateID: tplParent.ID, DefaultValue: "50"}); err != nil {
		t.Fatalf("attach template: %v", err)
	}

	part, err := svc.Part.Create(ctx, &CreatePartInput{Name: "贴片电阻", CategoryID: &childCat.ID}, "")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}

	params, err := svc.Parameter.ListFor(ctx, part.ID)
	if err != nil {
		t.Fatalf("list parameters: %v", err)
	}
	values := map[string]string{}
	for _, p := range params {
		values[p.TemplateID] = p.Value
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 parameters from category chain, got %d", len(values))
	}
	if values[tplShared.ID] != "0402" {
		t.Fatalf("expected nearest category default 0402, got %q", values[tplShared.ID])
	}
	if values[tplParent.ID] != "50" {
		t.Fatalf("expected inherited default 50, got %q", values[tplParent.ID])
	}
}

func TestDeactivate(t *testing.T) {
	db, svc := setupPartTest(t)
	ctx := context.Background()

	part := mustCreatePart(t, svc, &CreatePartInput{Name: "待停用"})
	if err := svc.Part.Deactivate(ctx, part.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var got entity.Part
	if err := db.First(&got, "id = ?", part.ID).Error; err != nil {
		t.Fatalf("reload part: %v", err)
	}
	if got.Active {
		t.Fatal("expected part to be inactive")
	}
}
