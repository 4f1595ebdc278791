package tokenizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const validTokenizer = `{"model":{"type":"BPE","vocab":{"a":0,"b":1}}}`

// fakeConverter writes a tokenizer for the names in ok and fails for the rest.
type fakeConverter struct {
	mu    sync.Mutex
	ok    map[string]bool
	calls []string
}

func (c *fakeConverter) Convert(_ context.Context, name, revision, outputDir string) error {
	c.mu.Lock()
	c.calls = append(c.calls, name+"@"+revision)
	c.mu.Unlock()
	if !c.ok[name] {
		return errors.New("conversion failed")
	}
	return os.WriteFile(filepath.Join(outputDir, FileName), []byte(validTokenizer), 0o644)
}

func (c *fakeConverter) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func TestLegacyTokenizerName(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"base", `{"base_model_name_or_path":"org/base"}`, "org/base", true},
		{"ssm", `{"ssm_config":{"d_state":16}}`, ssmFallbackTokenizer, true},
		{"base wins", `{"base_model_name_or_path":"org/base","ssm_config":{}}`, "org/base", true},
		{"null ssm", `{"ssm_config":null}`, "", false},
		{"neither", `{"model_type":"llama"}`, "", false},
		{"invalid", `{`, "", false},
	}
	for _, c := range cases {
		p := writeFile(t, dir, c.name+".json", c.content)
		got, ok := legacyTokenizerName(p)
		require.Equal(t, c.ok, ok, c.name)
		require.Equal(t, c.want, got, c.name)
	}
	_, ok := legacyTokenizerName("")
	require.False(t, ok)
}

func TestExternalStrategy(t *testing.T) {
	dir := t.TempDir()
	s := externalStrategy{}

	res, ok := s.Attempt(context.Background(), Request{Identifier: "org/model", Revision: "v2"})
	require.True(t, ok)
	require.Equal(t, &External{Name: "org/model", Revision: "v2", TrustRemoteCode: false}, res)

	_, ok = s.Attempt(context.Background(), Request{Identifier: dir})
	require.True(t, ok, "existing directories are usable identifiers")

	for _, id := range []string{"", "not a repo!", filepath.Join(dir, "missing", "deep", "path")} {
		_, ok = s.Attempt(context.Background(), Request{Identifier: id})
		require.False(t, ok, id)
	}
}
