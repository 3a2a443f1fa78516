package download

import "testing"

func TestBuildAlbumQuery(t *testing.T) {
	got := BuildAlbumQuery("Radiohead", "OK Computer", false, nil)
	if got != "Radiohead - OK Computer" {
		t.Errorf("got %q", got)
	}
}

func TestBuildAlbumQuery_Simplify(t *testing.T) {
	got := BuildAlbumQuery("Radiohead", "OK Computer (OKNOTOK Reissue) [Deluxe]", true, nil)
	if got != "Radiohead - OK Computer" {
		t.Errorf("got %q", got)
	}
}

func TestBuildTrackQuery_SimplifyStripsFeatureList(t *testing.T) {
	got := BuildTrackQuery("Drake", "Nice For What feat. Big Freedia", true, nil)
	if got != "Drake - Nice For What" {
		t.Errorf("got %q", got)
	}
}

func TestBuildAlbumQuery_ExcludeTerms(t *testing.T) {
	got := BuildAlbumQuery("Radiohead", "OK Computer", false, []string{"live", "remix"})
	want := "Radiohead - OK Computer -live -remix"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestSimplifyTerm_CollapsesWhitespace(t *testing.T) {
	got := simplifyTerm("  Foo   (Remastered)   ")
	if got != "Foo" {
		t.Errorf("got %q", got)
	}
}
