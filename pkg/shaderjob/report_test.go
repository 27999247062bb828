package shaderjob

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `Compiling shader
Running optimizer
Exec:['/opt/tools/spirv-opt', '/tmp/job/variant_185.spv', '-o', '/tmp/job/variant_185.opt.spv', '--eliminate-dead-code-aggressive', '--merge-blocks', '-O']
Running validator
Invalid shader: error: line 42: ID 1234[%x] has not been defined
Done
`

func TestExtractFlags(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want []string
	}{
		{
			name: "compact list",
			log:  "Running optimizer\nExec:['a','b','-o','c','-f1','-f2']\n",
			want: []string{"-f1", "-f2"},
		},
		{
			name: "python repr list",
			log:  sampleLog,
			want: []string{"--eliminate-dead-code-aggressive", "--merge-blocks", "-O"},
		},
		{
			name: "no flags",
			log:  "Running optimizer\nExec:['a', 'b', '-o', 'c']\n",
			want: []string{},
		},
		{
			name: "double quoted and escaped",
			log:  "Running optimizer\nExec:['a', 'b', '-o', 'c', \"--set-spec-const-default-value=1:2\", 'it\\'s']\n",
			want: []string{"--set-spec-const-default-value=1:2", "it's"},
		},
		{
			name: "comma inside flag",
			log:  "Running optimizer\nExec:['a', 'b', '-o', 'c', '--x=1, 2']\n",
			want: []string{"--x=1, 2"},
		},
		{
			name: "first marker wins",
			log:  "Running optimizer\nExec:['a','b','-o','c','-first']\nRunning optimizer\nExec:['a','b','-o','c','-second']\n",
			want: []string{"-first"},
		},
		{
			name: "no trailing newline",
			log:  "Running optimizer\nExec:['a','b','-o','c','-f']",
			want: []string{"-f"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractFlags(strings.NewReader(tt.log))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("flags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractFlags_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		log        string
		wantDetail string
	}{
		{name: "marker absent", log: "Invalid shader: oops\n"},
		{name: "marker on last line", log: "x\nRunning optimizer\n", wantDetail: "log ends after marker"},
		{name: "not a list", log: "Running optimizer\nExec: spirv-opt in.spv\n", wantDetail: "bracketed"},
		{name: "too few arguments", log: "Running optimizer\nExec:['a', 'b']\n", wantDetail: "at least 4"},
		{name: "unterminated quote", log: "Running optimizer\nExec:['a', 'b', '-o', 'c', 'd]\n", wantDetail: "unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractFlags(strings.NewReader(tt.log))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedLog))

			var mle *MalformedLogError
			require.True(t, errors.As(err, &mle))
			assert.Equal(t, MarkerRunningOptimizer, mle.Marker)
			assert.Contains(t, err.Error(), MarkerRunningOptimizer)
			if tt.wantDetail != "" {
				assert.Contains(t, mle.Detail, tt.wantDetail)
			}
		})
	}
}

func TestExtractErrorSignature(t *testing.T) {
	got, err := ExtractErrorSignature(strings.NewReader("Invalid shader: foo at line 42 column 7\n"))
	require.NoError(t, err)
	assert.Equal(t, "foo at line _ column _", got)

	got, err = ExtractErrorSignature(strings.NewReader(sampleLog))
	require.NoError(t, err)
	assert.Equal(t, "error: line _: ID _[%x] has not been defined", got)

	got, err = ExtractErrorSignature(strings.NewReader("prefix Invalid shader: crlf 12\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "crlf _", got)
}

func TestExtractErrorSignature_Missing(t *testing.T) {
	_, err := ExtractErrorSignature(strings.NewReader("Running optimizer\nExec:['a','b','-o','c']\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedLog))
	assert.Contains(t, err.Error(), MarkerInvalidShader)
}

func TestAbstractDigits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"no digits", "no digits"},
		{"line 42 column 7", "line _ column _"},
		{"1234567890", "_"},
		{"%12 = OpLoad %3 %45", "%_ = OpLoad %_ %_"},
		{"v1.2.3", "v_._._"},
	}
	for _, tt := range tests {
		got := AbstractDigits(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, AbstractDigits(got), "abstraction must be idempotent")
	}
}

func TestParseErrorLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "variant_185.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0644))

	report, err := ParseErrorLog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"--eliminate-dead-code-aggressive", "--merge-blocks", "-O"}, report.Flags)
	assert.Equal(t, "error: line _: ID _[%x] has not been defined", report.Signature)

	t.Run("missing file", func(t *testing.T) {
		_, err := ParseErrorLog(filepath.Join(dir, "nope.txt"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("malformed names path", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.txt")
		require.NoError(t, os.WriteFile(bad, []byte("Running optimizer\nExec:['a','b','-o','c']\n"), 0644))
		_, err := ParseErrorLog(bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedLog))
		assert.Contains(t, err.Error(), bad)
		assert.Contains(t, err.Error(), MarkerInvalidShader)
	})
}
