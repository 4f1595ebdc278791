//go:build tokenizers

package tokenizer

import "github.com/daulet/tokenizers"

type nativeEncoder struct {
	tk *tokenizers.Tokenizer
}

func openEncoder(path string) (Encoder, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, err
	}
	return nativeEncoder{tk: tk}, nil
}

func (e nativeEncoder) Encode(text string, addSpecialTokens bool) ([]uint32, error) {
	ids, _ := e.tk.Encode(text, addSpecialTokens)
	return ids, nil
}

func (e nativeEncoder) VocabSize() int { return int(e.tk.VocabSize()) }

func (e nativeEncoder) Close() error { return e.tk.Close() }
