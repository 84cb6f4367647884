package codec_test

import (
	"fmt"
	"os"
	"strings"

	"github.com/ssargent/jsonlbuf/pkg/codec"
)

func ExampleLineSerializer() {
	doc, err := codec.ParseDocument([]byte(`{"id": 7, "tags": ["a", "b"]}`))
	if err != nil {
		panic(err)
	}
	line, err := codec.NewLineSerializer(nil).Serialize(doc)
	if err != nil {
		panic(err)
	}
	os.Stdout.Write(line)
	// Output: {"id":7,"tags":["a","b"]}
}

func ExampleLineReader() {
	r := codec.NewLineReader(strings.NewReader("{\"a\":1}\n{\"b\":2,\"c\":3}\n"))
	for r.Next() {
		fmt.Println(r.Document().Keys())
	}
	if err := r.Err(); err != nil {
		panic(err)
	}
	// Output:
	// [a]
	// [b c]
}
