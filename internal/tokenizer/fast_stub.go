//go:build !tokenizers

package tokenizer

import (
	"errors"
	"os"

	"github.com/tidwall/gjson"
)

// inspectEncoder validates the serialized tokenizer and reports its vocabulary
// size; encoding needs the native bindings.
type inspectEncoder struct {
	vocab int
}

func openEncoder(path string) (Encoder, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(b) {
		return nil, errors.New("invalid JSON")
	}
	model := gjson.GetBytes(b, "model")
	if !model.IsObject() {
		return nil, errors.New("missing tokenizer model")
	}
	size := 0
	switch vocab := model.Get("vocab"); {
	case vocab.IsObject():
		vocab.ForEach(func(_, v gjson.Result) bool {
			if id := int(v.Int()) + 1; id > size {
				size = id
			}
			return true
		})
	case vocab.IsArray():
		size = len(vocab.Array())
	}
	gjson.GetBytes(b, "added_tokens.#.id").ForEach(func(_, v gjson.Result) bool {
		if id := int(v.Int()) + 1; id > size {
			size = id
		}
		return true
	})
	return inspectEncoder{vocab: size}, nil
}

func (inspectEncoder) Encode(string, bool) ([]uint32, error) { return nil, ErrEncoderUnavailable }

func (e inspectEncoder) VocabSize() int { return e.vocab }

func (inspectEncoder) Close() error { return nil }
