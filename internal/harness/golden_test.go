package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/scriptengine/internal/journal"
)

func TestTranscript_InterleavesJournalBySeq(t *testing.T) {
	result := &Result{
		Exchanges: []Exchange{
			{Request: `{"opcode": "loadlibrary", "library_path": "$LIBS/a.js"}`, Response: `{"status":"success","result":{}}`},
			{Request: `{"opcode": "exit"}`},
		},
		Journal: []journal.Exchange{
			{Seq: 2, Opcode: "loadlibrary", Status: "success"},
		},
		Libraries: []journal.Library{
			{Seq: 1, Name: "<library code>", Path: "$LIBS/a.js", Bindings: []string{"a", "b"}},
		},
		Bindings: []string{"a", "b"},
	}

	want := `# demo
> {"opcode": "loadlibrary", "library_path": "$LIBS/a.js"}
< {"status":"success","result":{}}
> {"opcode": "exit"}
# journal
library 1 name="<library code>" path=$LIBS/a.js bindings=a,b
exchange 2 opcode="loadlibrary" status=success code=0
# bindings
a b
`
	assert.Equal(t, want, string(Transcript("demo", result)))
}

func TestTranscript_Empty(t *testing.T) {
	got := Transcript("empty", &Result{})
	assert.Equal(t, "# empty\n# journal\n# bindings\n\n", string(got))
}
