package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteConflicts_PipeDelimitedWithHeader(t *testing.T) {
	started := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	rows := []ConflictRow{{
		ID:          "t1",
		Name:        "Deploy | prod",
		Description: "line one\nline two\r",
		TaskType:    "Bug",
		Status:      "To do",
		Started:     &started,
		Project:     "Apollo",
		ParentTask:  "Release",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteConflicts(&buf, rows))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id|name|description|task_type|status|started|deadline|project|parent_task", lines[0])
	assert.Equal(t, "t1|Deploy ; prod|line one line two|Bug|To do|2024-01-08T10:00:00Z||Apollo|Release", lines[1])
}

func TestWriteConflicts_EmptyHasOnlyHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConflicts(&buf, nil))
	assert.Equal(t, strings.Join(ConflictHeader, "|")+"\n", buf.String())
}

func TestFSSink_Put(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink := NewFSSink(fs, "/exports")

	loc, err := sink.Put(context.Background(), "conflict-tasks.csv", strings.NewReader("a|b\n"))
	require.NoError(t, err)
	assert.Equal(t, "/exports/conflict-tasks.csv", loc)

	data, err := afero.ReadFile(fs, loc)
	require.NoError(t, err)
	assert.Equal(t, "a|b\n", string(data))
}

func TestFSSink_PutStripsDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink := NewFSSink(fs, "/exports")

	loc, err := sink.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/exports/passwd", loc)
}

func TestFSSink_PutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFSSink(afero.NewMemMapFs(), "/exports").Put(ctx, "x.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, context.Canceled)
}

// fakeGCS counts uploads whose body arrived in full.
type fakeGCS struct {
	completed atomic.Int32
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if _, err := io.ReadAll(r.Body); err != nil {
		return
	}
	f.completed.Add(1)
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"bucket":"exports","name":"strata/conflicts/report.csv","size":"4"}`)
}

func newFakeGCSSink(t *testing.T) (*GCSSink, *fakeGCS, *httptest.Server) {
	t.Helper()
	fake := &fakeGCS{}
	srv := httptest.NewServer(fake)
	t.Setenv("STORAGE_EMULATOR_HOST", srv.URL)
	sink, err := NewGCSSink(context.Background(), GCSConfig{Bucket: "exports", Prefix: "strata/conflicts"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink, fake, srv
}

func TestGCSSink_Put(t *testing.T) {
	sink, fake, srv := newFakeGCSSink(t)

	loc, err := sink.Put(context.Background(), "../report.csv", strings.NewReader("id|\n"))
	require.NoError(t, err)
	assert.Equal(t, "gs://exports/strata/conflicts/report.csv", loc)

	srv.Close()
	assert.Equal(t, int32(1), fake.completed.Load())
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("disk gone")
	}
	r.sent = true
	return copy(p, "id|name|"), nil
}

func TestGCSSink_PutAbortsOnReadError(t *testing.T) {
	sink, fake, srv := newFakeGCSSink(t)

	_, err := sink.Put(context.Background(), "report.csv", &failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")

	srv.Close()
	assert.Zero(t, fake.completed.Load(), "no object is finalized")
}
