package blog

import (
	"testing"

	"github.com/hitoshi/blogman/internal/model"
)

func TestCanView(t *testing.T) {
	author := "author"
	viewer := "viewer"

	tests := []struct {
		name      string
		published bool
		blocked   []string
		viewerID  string
		want      bool
	}{
		{"published visible to others", true, nil, viewer, true},
		{"draft hidden from others", false, nil, viewer, false},
		{"draft visible to author", false, nil, author, true},
		{"blocked viewer excluded", true, []string{viewer}, viewer, false},
		{"other blocked user does not affect viewer", true, []string{"someone"}, viewer, true},
		{"author exempt from block", true, []string{author}, author, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &model.Blog{AuthorID: author, IsPublished: tt.published, BlockedUsers: tt.blocked}
			if got := CanView(tt.viewerID, b); got != tt.want {
				t.Errorf("CanView() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInFeed_CategoryOverlap(t *testing.T) {
	viewer := &model.User{ID: "viewer", Preferences: []model.Category{model.CategoryTechnology, model.CategoryMusic}}

	tests := []struct {
		name string
		blog *model.Blog
		want bool
	}{
		{
			name: "overlapping category",
			blog: &model.Blog{AuthorID: "a", IsPublished: true, Categories: []model.Category{model.CategoryMusic}},
			want: true,
		},
		{
			name: "no overlap excluded",
			blog: &model.Blog{AuthorID: "a", IsPublished: true, Categories: []model.Category{model.CategoryFood, model.CategoryTravel}},
			want: false,
		},
		{
			name: "own draft without overlap included",
			blog: &model.Blog{AuthorID: "viewer", IsPublished: false, Categories: []model.Category{model.CategoryFood}},
			want: true,
		},
		{
			name: "blocked with overlap excluded",
			blog: &model.Blog{AuthorID: "a", IsPublished: true, Categories: []model.Category{model.CategoryTechnology}, BlockedUsers: []string{"viewer"}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InFeed(viewer, tt.blog); got != tt.want {
				t.Errorf("InFeed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterVisible_PreservesOrder(t *testing.T) {
	viewer := &model.User{ID: "v", Preferences: []model.Category{model.CategoryTechnology}}
	tech := []model.Category{model.CategoryTechnology}
	blogs := []*model.Blog{
		{ID: "1", AuthorID: "a", IsPublished: true, Categories: tech},
		{ID: "2", AuthorID: "a", IsPublished: false, Categories: tech},
		{ID: "3", AuthorID: "a", IsPublished: true, Categories: []model.Category{model.CategoryGaming}},
		{ID: "4", AuthorID: "v", IsPublished: false, Categories: tech},
		{ID: "5", AuthorID: "a", IsPublished: true, Categories: tech},
	}

	got := FilterVisible(viewer, blogs)

	want := []string{"1", "4", "5"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestFilterVisible_EmptyInputReturnsEmpty(t *testing.T) {
	got := FilterVisible(&model.User{ID: "v"}, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
