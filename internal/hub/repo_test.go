package hub

import (
	"errors"
	"testing"
)

func TestValidateRepoID(t *testing.T) {
	cases := []struct {
		id string
		ok bool
	}{
		{"gpt2", true},
		{"meta-llama/Llama-2-7b-hf", true},
		{"EleutherAI/gpt-neox-20b", true},
		{"org/name.v1_2", true},
		{"", false},
		{"a/b/c", false},
		{"../etc", false},
		{"org/..", false},
		{"/abs/path", false},
		{"has space", false},
		{"org/name.", false},
	}
	for _, c := range cases {
		err := ValidateRepoID(c.id)
		if c.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", c.id, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidRepoID) {
			t.Fatalf("%q: expected ErrInvalidRepoID, got %v", c.id, err)
		}
	}
}

func TestRepoDefaults(t *testing.T) {
	r := NewRepo("org/name", "")
	if r.Revision != "main" || r.FolderName() != "models--org--name" || r.String() != "org/name@main" {
		t.Fatalf("unexpected repo: %+v %s", r, r.FolderName())
	}
}
