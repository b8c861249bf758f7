package viaf

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// ReadClusters streams VIAF records out of a clusters dump file. The
// dump is sorted by cluster, one membership per line, and identifies
// clusters by their VIAF URL:
//
//	http://viaf.org/viaf/100000002	DNB|100001718
//	http://viaf.org/viaf/100000002	SUDOC|223317632
//
// The cluster pid is the last URL segment; bare pids read fine too.
// Clusters touching none of the known sources are skipped. fn is
// called once per emitted cluster.
func ReadClusters(r io.Reader, fn func(rec model.Record) error) error {
	scanner := bufio.NewScanner(r)
	// Wikipedia heavy clusters produce long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current *cluster
	flush := func() error {
		if current == nil {
			return nil
		}
		rec := current.Record()
		current = nil
		if rec == nil {
			return nil
		}
		return fn(rec)
	}

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		pid, member, ok := strings.Cut(text, "\t")
		if !ok {
			return fmt.Errorf("viaf dump line %d: no tab separator", line)
		}
		if i := strings.LastIndexByte(pid, '/'); i >= 0 {
			pid = pid[i+1:]
		}
		code, value, ok := strings.Cut(member, "|")
		if !ok {
			continue
		}
		if current == nil || current.pid != pid {
			if err := flush(); err != nil {
				return err
			}
			current = newCluster(pid)
		}
		current.add(code, value)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read viaf dump: %w", err)
	}
	return flush()
}
