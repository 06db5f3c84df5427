package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/mwantia/promptgallery/pkg/category"
	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/mwantia/promptgallery/pkg/db/store"
	"github.com/mwantia/promptgallery/pkg/db/store/storetest"
	"github.com/mwantia/promptgallery/pkg/metadata"
	"github.com/mwantia/promptgallery/pkg/metadata/metadatatest"
	"github.com/mwantia/promptgallery/pkg/uploads"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc  *Service
	tree *category.Tree
	sink *uploads.Sink
	fs   afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := storetest.New(t)
	fs := afero.NewMemMapFs()
	sink := uploads.NewSink(fs, "/uploads", []string{"png", "jpg"})
	tree := category.NewTree(s)

	return &fixture{
		svc:  NewService(s, tree, sink, 2),
		tree: tree,
		sink: sink,
		fs:   fs,
	}
}

func (f *fixture) exists(t *testing.T, name string) bool {
	t.Helper()
	ok, err := afero.Exists(f.fs, "/uploads/"+name)
	require.NoError(t, err)
	return ok
}

func TestCleanTags(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		" , ,":                     "",
		"Cat, dog ,cat":            "cat,dog",
		"oil   Painting,  sunset ": "oil painting,sunset",
		"a,b,A,,c":                 "a,b,c",
	}
	for raw, want := range tests {
		assert.Equal(t, want, CleanTags(raw), raw)
	}
}

func TestAddWithMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	data := metadatatest.PNG(t, metadatatest.Text("prompt", metadatatest.ComfyGraph))
	prompt, err := f.svc.Add(ctx, AddInput{
		Title:      "  Lighthouse ",
		PromptText: "typed by hand",
		Tags:       "Sea, Dusk",
		Image:      &Image{Filename: "ComfyUI_0001.PNG", Data: data},
	})
	require.NoError(t, err)

	assert.Equal(t, "Lighthouse", prompt.Title)
	assert.Equal(t, "sea,dusk", prompt.Tags)
	assert.Equal(t, "a lighthouse at dusk, oil painting", prompt.PromptText)
	require.NotNil(t, prompt.Seed)
	assert.Equal(t, int64(1234), *prompt.Seed)
	require.NotNil(t, prompt.Checkpoint)
	assert.Equal(t, "juggernaut_v9", *prompt.Checkpoint)
	require.NotNil(t, prompt.Loras)
	assert.Equal(t, "impasto,detail", *prompt.Loras)
	assert.NotEmpty(t, prompt.RawMetadata)

	require.NotNil(t, prompt.ImageFilename)
	assert.NotEqual(t, "ComfyUI_0001.PNG", *prompt.ImageFilename)
	assert.True(t, strings.HasSuffix(*prompt.ImageFilename, ".png"))
	assert.True(t, f.exists(t, *prompt.ImageFilename))
}

func TestAddWithoutMetadataStillStoresImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prompt, err := f.svc.Add(ctx, AddInput{
		Title:      "plain",
		PromptText: "my own words",
		Image:      &Image{Filename: "plain.png", Data: metadatatest.PNG(t)},
	})
	require.NoError(t, err)

	assert.Equal(t, "my own words", prompt.PromptText)
	assert.Nil(t, prompt.NegativePrompt)
	assert.Nil(t, prompt.Seed)
	assert.Nil(t, prompt.Steps)
	assert.Nil(t, prompt.Checkpoint)
	assert.Nil(t, prompt.Loras)
	assert.Empty(t, prompt.RawMetadata)
	require.NotNil(t, prompt.ImageFilename)
	assert.True(t, f.exists(t, *prompt.ImageFilename))
}

func TestAddKeepsTypedPromptWhenImagePromptIsBlank(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	data := metadatatest.PNG(t, metadatatest.Text("prompt", `{"1": {"inputs": {"positive": "  ", "seed": 3}}}`))
	prompt, err := f.svc.Add(ctx, AddInput{
		Title:      "blank",
		PromptText: "typed by hand",
		Image:      &Image{Filename: "blank.png", Data: data},
	})
	require.NoError(t, err)

	assert.Equal(t, "typed by hand", prompt.PromptText)
	require.NotNil(t, prompt.Seed)
	assert.Equal(t, int64(3), *prompt.Seed)
}

func TestAddWithMalformedMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	data := metadatatest.PNG(t, metadatatest.Text("prompt", "{not json"))
	prompt, err := f.svc.Add(ctx, AddInput{Title: "broken", Image: &Image{Filename: "b.png", Data: data}})
	require.NoError(t, err)
	assert.Nil(t, prompt.Seed)
	assert.NotNil(t, prompt.ImageFilename)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	missing := uint(42)

	tests := []struct {
		name string
		in   AddInput
	}{
		{name: "empty title", in: AddInput{Title: "   "}},
		{name: "unknown category", in: AddInput{Title: "x", CategoryID: &missing}},
		{name: "extension", in: AddInput{Title: "x", Image: &Image{Filename: "x.exe", Data: []byte("MZ")}}},
		{name: "empty image", in: AddInput{Title: "x", Image: &Image{Filename: "x.png"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Add(ctx, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	files, err := afero.ReadDir(f.fs, "/")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEditReplacesImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	data := metadatatest.PNG(t, metadatatest.Text("prompt", metadatatest.ComfyGraph))
	prompt, err := f.svc.Add(ctx, AddInput{Title: "first", Image: &Image{Filename: "a.png", Data: data}})
	require.NoError(t, err)
	oldName := *prompt.ImageFilename

	art, err := f.tree.Create(ctx, "art", "", nil)
	require.NoError(t, err)

	edited, err := f.svc.Edit(ctx, prompt.ID, EditInput{
		Title:      "second",
		Tags:       "New",
		CategoryID: &art.ID,
		Image:      &Image{Filename: "b.jpg", Data: []byte("jpeg bytes")},
	})
	require.NoError(t, err)

	assert.Equal(t, "second", edited.Title)
	assert.Equal(t, "new", edited.Tags)
	assert.Equal(t, &art.ID, edited.CategoryID)
	assert.Equal(t, "a lighthouse at dusk, oil painting", edited.PromptText)
	require.NotNil(t, edited.ImageFilename)
	assert.NotEqual(t, oldName, *edited.ImageFilename)
	assert.True(t, strings.HasSuffix(*edited.ImageFilename, ".jpg"))
	assert.True(t, f.exists(t, *edited.ImageFilename))
	assert.False(t, f.exists(t, oldName))
}

func TestEditKeepsImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prompt, err := f.svc.Add(ctx, AddInput{Title: "first", Image: &Image{Filename: "a.png", Data: metadatatest.PNG(t)}})
	require.NoError(t, err)

	edited, err := f.svc.Edit(ctx, prompt.ID, EditInput{Title: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, prompt.ImageFilename, edited.ImageFilename)
	assert.True(t, f.exists(t, *edited.ImageFilename))

	_, err = f.svc.Edit(ctx, 999, EditInput{Title: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteToleratesMissingImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prompt, err := f.svc.Add(ctx, AddInput{Title: "gone", Image: &Image{Filename: "a.png", Data: metadatatest.PNG(t)}})
	require.NoError(t, err)
	require.NoError(t, f.sink.Remove(*prompt.ImageFilename))

	require.NoError(t, f.svc.Delete(ctx, prompt.ID))
	_, err = f.svc.Get(ctx, prompt.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRemovesImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prompt, err := f.svc.Add(ctx, AddInput{Title: "x", Image: &Image{Filename: "a.png", Data: metadatatest.PNG(t)}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, prompt.ID))
	assert.False(t, f.exists(t, *prompt.ImageFilename))
	assert.ErrorIs(t, f.svc.Delete(ctx, prompt.ID), store.ErrNotFound)
}

func TestReextract(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prompt, err := f.svc.Add(ctx, AddInput{Title: "x", Image: &Image{Filename: "a.png", Data: metadatatest.PNG(t)}})
	require.NoError(t, err)
	assert.Nil(t, prompt.Seed)

	data := metadatatest.PNG(t, metadatatest.Text("parameters", metadatatest.ComfyGraph))
	_, err = f.sink.Save(data, *prompt.ImageFilename)
	require.NoError(t, err)

	refreshed, err := f.svc.Reextract(ctx, prompt.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.Seed)
	assert.Equal(t, int64(1234), *refreshed.Seed)
	assert.Equal(t, "a lighthouse at dusk, oil painting", refreshed.PromptText)

	bare, err := f.svc.Add(ctx, AddInput{Title: "no image"})
	require.NoError(t, err)
	_, err = f.svc.Reextract(ctx, bare.ID)
	assert.ErrorIs(t, err, ErrValidation)

	noMeta, err := f.svc.Add(ctx, AddInput{Title: "y", Image: &Image{Filename: "c.png", Data: metadatatest.PNG(t)}})
	require.NoError(t, err)
	_, err = f.svc.Reextract(ctx, noMeta.ID)
	assert.ErrorIs(t, err, metadata.ErrMissingMetadata)
}

func TestListFiltersAndPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	root, err := f.tree.Create(ctx, "root", "", nil)
	require.NoError(t, err)
	child, err := f.tree.Create(ctx, "child", "", &root.ID)
	require.NoError(t, err)
	other, err := f.tree.Create(ctx, "other", "", nil)
	require.NoError(t, err)

	add := func(title, tags string, cat *uint) *models.Prompt {
		p, err := f.svc.Add(ctx, AddInput{Title: title, Tags: tags, CategoryID: cat})
		require.NoError(t, err)
		return p
	}
	inRoot := add("in root", "cat", &root.ID)
	inChild := add("in child", "cats", &child.ID)
	add("in other", "cat", &other.ID)
	add("loose", "", nil)

	page, err := f.svc.List(ctx, ListQuery{CategoryID: &root.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, inChild.ID, page.Items[0].ID)
	assert.Equal(t, inRoot.ID, page.Items[1].ID)

	page, err = f.svc.List(ctx, ListQuery{Tag: " CAT "})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.svc.List(ctx, ListQuery{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.PerPage)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, inChild.ID, page.Items[0].ID)

	page, err = f.svc.List(ctx, ListQuery{Page: 9, PerPage: 3})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 2, page.Pages)

	page, err = f.svc.List(ctx, ListQuery{Query: "child"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = f.svc.List(ctx, ListQuery{CategoryID: ptr(uint(999))})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTagsAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.svc.store

	create := func(p models.Prompt) {
		require.NoError(t, st.CreatePrompt(ctx, &p))
	}
	create(models.Prompt{Title: "1", Tags: "b,a", Checkpoint: ptr("sdxl"), Loras: ptr("x,y")})
	create(models.Prompt{Title: "2", Tags: "a", Checkpoint: ptr("flux"), Loras: ptr("y,None")})
	create(models.Prompt{Title: "3", Tags: "c", Checkpoint: ptr("flux")})
	create(models.Prompt{Title: "4"})

	tags, err := f.svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tags)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, []models.ValueCount{{Value: "flux", Count: 2}, {Value: "sdxl", Count: 1}}, stats.Checkpoints)
	assert.Equal(t, []models.ValueCount{{Value: "y", Count: 2}, {Value: "x", Count: 1}}, stats.Loras)
	assert.Equal(t, []models.ValueCount{{Value: "a", Count: 2}, {Value: "b", Count: 1}, {Value: "c", Count: 1}}, stats.Tags)
}

// interleavedStore runs before once, right ahead of the first write the
// service issues, to simulate a concurrent request landing in between.
type interleavedStore struct {
	store.CatalogStore
	before func()
}

func (s *interleavedStore) fire() {
	if s.before != nil {
		fn := s.before
		s.before = nil
		fn()
	}
}

func (s *interleavedStore) Transaction(ctx context.Context, fn func(tx store.CatalogStore) error) error {
	s.fire()
	return s.CatalogStore.Transaction(ctx, fn)
}

func (s *interleavedStore) CreatePrompt(ctx context.Context, prompt *models.Prompt) error {
	s.fire()
	return s.CatalogStore.CreatePrompt(ctx, prompt)
}

func (s *interleavedStore) UpdatePrompt(ctx context.Context, prompt *models.Prompt) error {
	s.fire()
	return s.CatalogStore.UpdatePrompt(ctx, prompt)
}

func TestAddRechecksCategoryDeletedConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.tree.Create(ctx, "doomed", "", nil)
	require.NoError(t, err)

	st := &interleavedStore{CatalogStore: f.svc.store, before: func() {
		require.NoError(t, f.tree.Delete(ctx, c.ID))
	}}
	svc := NewService(st, f.tree, f.sink, 2)

	_, err = svc.Add(ctx, AddInput{
		Title:      "orphan",
		CategoryID: &c.ID,
		Image:      &Image{Filename: "orphan.png", Data: metadatatest.PNG(t)},
	})
	assert.ErrorIs(t, err, ErrValidation)

	total, err := f.svc.store.CountPrompts(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	files, _ := afero.ReadDir(f.fs, "/uploads")
	assert.Empty(t, files)
}

func TestEditRechecksCategoryDeletedConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	home, err := f.tree.Create(ctx, "home", "", nil)
	require.NoError(t, err)
	target, err := f.tree.Create(ctx, "target", "", nil)
	require.NoError(t, err)

	prompt, err := f.svc.Add(ctx, AddInput{Title: "mover", CategoryID: &home.ID})
	require.NoError(t, err)

	st := &interleavedStore{CatalogStore: f.svc.store, before: func() {
		require.NoError(t, f.tree.Delete(ctx, target.ID))
	}}
	svc := NewService(st, f.tree, f.sink, 2)

	_, err = svc.Edit(ctx, prompt.ID, EditInput{Title: "mover", CategoryID: &target.ID})
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := f.svc.Get(ctx, prompt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CategoryID)
	assert.Equal(t, home.ID, *stored.CategoryID)
}

func ptr[T any](v T) *T {
	return &v
}
