// Package tokenizer resolves the tokenizer a router serves with.
//
// Resolution locates the identifier (local directory, hub cache or hub API),
// fetches the optional configuration files, then walks an ordered list of
// strategies until one yields a tokenizer:
//
//   - transformers: convert identifier@revision with the Python converter and load the result
//   - legacy: convert the base model named by config.json (or the SSM default) at main
//   - artifact: copy a tokenizer.json shipped with the located files into the output directory
//   - external: hand the identifier to an external (Python) tokenizer
//
// Files:
//   - types.go: Resolved variants and resolver states
//   - metadata.go: best-effort fetch of configuration files and model info
//   - converter.go, convert.py: Python conversion subprocess
//   - strategies.go: the strategies above
//   - resolver.go: the state machine
//   - fast.go, fast_native.go, fast_stub.go: fast tokenizer loading.
//     Build with -tags=tokenizers to link the native bindings; the default
//     build validates tokenizer.json in pure Go and cannot encode.
package tokenizer
