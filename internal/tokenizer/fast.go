package tokenizer

import (
	"errors"
	"fmt"
)

// FileName is the serialized fast tokenizer file name.
const FileName = "tokenizer.json"

// ErrEncoderUnavailable is returned by Encode when the binary was built
// without native tokenizer bindings.
var ErrEncoderUnavailable = errors.New("fast tokenizer encoding requires a build with -tags=tokenizers")

// Encoder is a loaded fast tokenizer.
type Encoder interface {
	Encode(text string, addSpecialTokens bool) ([]uint32, error)
	VocabSize() int
	Close() error
}

// Fast is a fast tokenizer loaded from a serialized tokenizer.json.
type Fast struct {
	Path string
	Encoder
}

func (*Fast) isResolved() {}

func (f *Fast) String() string { return "fast:" + f.Path }

// LoadFast loads the serialized tokenizer at path.
func LoadFast(path string) (*Fast, error) {
	enc, err := openEncoder(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Fast{Path: path, Encoder: enc}, nil
}
