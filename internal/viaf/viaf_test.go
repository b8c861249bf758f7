package viaf

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/PascalRepond/rero-mef/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadClusters(t *testing.T) {
	dump := strings.Join([]string{
		"http://viaf.org/viaf/100000002\tDNB|100001718",
		"http://viaf.org/viaf/100000002\tSUDOC|223317632",
		"http://viaf.org/viaf/100000002\tWikipedia|https://de.wikipedia.org/wiki/Erika_Fuchs",
		"http://viaf.org/viaf/100000003\tLC|n79021383",
		"100000005\tRERO|A000000001",
	}, "\n")

	var got []model.Record
	err := ReadClusters(strings.NewReader(dump), func(rec model.Record) error {
		got = append(got, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("read clusters: %v", err)
	}

	// The LC only cluster is dropped.
	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2", len(got))
	}
	want := model.Record{
		"pid":       "100000002",
		"gnd_pid":   "100001718",
		"idref_pid": "223317632",
		"wiki":      []string{"https://de.wikipedia.org/wiki/Erika_Fuchs"},
	}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("first cluster = %v, want %v", got[0], want)
	}
	if got[1].Pid() != "100000005" || got[1]["rero_pid"] != "A000000001" {
		t.Errorf("second cluster = %v", got[1])
	}
}

func TestReadClustersBadLine(t *testing.T) {
	err := ReadClusters(strings.NewReader("no separator here"), func(model.Record) error {
		t.Fatal("callback must not run")
		return nil
	})
	if err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestClientGetByAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/viaf/sourceID/DNB|100001718/justlinks.json":
			io.WriteString(w, `{
				"viafID": "100000002",
				"DNB": ["100001718"],
				"SUDOC": ["223317632"],
				"Wikipedia": ["https://de.wikipedia.org/wiki/Erika_Fuchs"],
				"XLinks": {"ignored": true}
			}`)
		case "/viaf/sourceID/DNB|gone/justlinks.json":
			http.NotFound(w, r)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), srv.URL)

	rec, err := client.GetByAgent(context.Background(), model.EntityGnd, "100001718")
	if err != nil {
		t.Fatalf("get by agent: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.Pid() != "100000002" {
		t.Errorf("pid = %q", rec.Pid())
	}
	if rec["idref_pid"] != "223317632" {
		t.Errorf("idref_pid = %v", rec["idref_pid"])
	}
	if AgentPid(rec, model.EntityGnd) != "100001718" {
		t.Errorf("gnd_pid = %v", rec["gnd_pid"])
	}

	rec, err = client.GetByAgent(context.Background(), model.EntityGnd, "gone")
	if err != nil {
		t.Fatalf("get missing agent: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %v", rec)
	}
}

func TestClientRejectsStaleCluster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"viafID": "42", "DNB": ["other"]}`)
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), srv.URL)
	rec, err := client.GetByAgent(context.Background(), model.EntityGnd, "100001718")
	if err != nil {
		t.Fatalf("get by agent: %v", err)
	}
	if rec != nil {
		t.Errorf("stale cluster must be dropped, got %v", rec)
	}
}
