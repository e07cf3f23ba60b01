package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders a result as text for golden comparison.
//
//	# name
//	> request line
//	< response line
//	# journal
//	library 1 name="..." path=$LIBS/x.js bindings=a,b
//	exchange 2 opcode="loadlibrary" status=success code=0
//	# bindings
//	a b
//
// Durations and hashes are left out so transcripts are stable.
func Transcript(name string, result *Result) []byte {
	var buf strings.Builder

	fmt.Fprintf(&buf, "# %s\n", name)
	for _, ex := range result.Exchanges {
		fmt.Fprintf(&buf, "> %s\n", ex.Request)
		if ex.Response != "" {
			fmt.Fprintf(&buf, "< %s\n", ex.Response)
		}
	}

	buf.WriteString("# journal\n")
	lines := make(map[int64]string, len(result.Journal)+len(result.Libraries))
	var last int64
	for _, lib := range result.Libraries {
		lines[lib.Seq] = fmt.Sprintf("library %d name=%q path=%s bindings=%s",
			lib.Seq, lib.Name, lib.Path, strings.Join(lib.Bindings, ","))
		last = max(last, lib.Seq)
	}
	for _, ex := range result.Journal {
		lines[ex.Seq] = fmt.Sprintf("exchange %d opcode=%q status=%s code=%d",
			ex.Seq, ex.Opcode, ex.Status, ex.Code)
		last = max(last, ex.Seq)
	}
	for seq := int64(1); seq <= last; seq++ {
		if line, ok := lines[seq]; ok {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}

	buf.WriteString("# bindings\n")
	buf.WriteString(strings.Join(result.Bindings, " "))
	buf.WriteByte('\n')

	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the transcript doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the transcript of an existing result against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Transcript(scenarioName, result))
}
