package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greentwin/internal/model"
)

func collect(t *testing.T, src Source) []model.RawMessage {
	t.Helper()
	out := make(chan model.RawMessage, 100)
	require.NoError(t, src.Run(context.Background(), out))
	close(out)

	var msgs []model.RawMessage
	for m := range out {
		msgs = append(msgs, m)
	}
	return msgs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSource_CSV(t *testing.T) {
	path := writeFile(t, "readings.csv", "\"timestamp\",machine_id,current_amp,voltage_v,power_kw,status_label\n"+
		"2024-05-01T08:00:00,Press_01,12.02,220.3,2.12,NORMAL\n"+
		"2024-05-01T08:00:01,Press_01,,220.1,2.10,NORMAL\n")

	msgs := collect(t, NewFileSource(path, "csv", zap.NewNop()))
	require.Len(t, msgs, 2)

	r, err := ParseMessage(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "Press_01", r.MachineID)
	assert.Equal(t, 12.02, r.CurrentAmp)

	_, err = ParseMessage(msgs[1])
	assert.ErrorIs(t, err, ErrInvalidReading, "empty current_amp cell is a missing field")
}

func TestFileSource_JSONShapes(t *testing.T) {
	tests := map[string]string{
		"array":  `[{"machine_id":"Press_01","current_amp":12,"power_kw":2.1},{"machine_id":"Press_01","current_amp":12.2,"power_kw":2.2}]`,
		"ndjson": "{\"machine_id\":\"Press_01\",\"current_amp\":12,\"power_kw\":2.1}\n{\"machine_id\":\"Press_01\",\"current_amp\":12.2,\"power_kw\":2.2}\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			msgs := collect(t, NewFileSource(writeFile(t, "r.json", content), "json", zap.NewNop()))
			require.Len(t, msgs, 2)
			r, err := ParseMessage(msgs[1])
			require.NoError(t, err)
			assert.Equal(t, 12.2, r.CurrentAmp)
		})
	}
}

func TestFileSource_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"machine_id":"Press_01","current_amp":12,"power_kw":2.1}`))
	}))
	defer srv.Close()

	msgs := collect(t, NewFileSource(srv.URL, "json", zap.NewNop()))
	assert.Len(t, msgs, 1)
}

func TestFileSource_Errors(t *testing.T) {
	out := make(chan model.RawMessage, 1)
	assert.Error(t, NewFileSource(filepath.Join(t.TempDir(), "missing.csv"), "csv", zap.NewNop()).Run(context.Background(), out))
	assert.Error(t, NewFileSource(writeFile(t, "x.xml", "<x/>"), "xml", zap.NewNop()).Run(context.Background(), out))
}

func TestFileSource_StopsOnCancel(t *testing.T) {
	path := writeFile(t, "r.json", "{\"machine_id\":\"a\"}\n{\"machine_id\":\"b\"}\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan model.RawMessage) // unbuffered, nobody reads
	assert.NoError(t, NewFileSource(path, "json", zap.NewNop()).Run(ctx, out))
}

func TestFileSource_CSVReadErrorEndsReplay(t *testing.T) {
	reset := errors.New("connection reset by peer")
	body := io.MultiReader(
		strings.NewReader("machine_id,current_amp,power_kw\nPress_01,12.0,2.1\n"),
		iotest.ErrReader(reset),
	)
	src := NewFileSource("http://example.invalid/readings.csv", "csv", zap.NewNop())
	out := make(chan model.RawMessage, 10)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := src.ingestCSV(context.Background(), body, out)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, reset)
		assert.Equal(t, 1, res.n)
		assert.Len(t, out, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("replay kept reading after a persistent read error")
	}
}
