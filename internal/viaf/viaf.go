// Package viaf links source authority records through the Virtual
// International Authority File. A VIAF cluster groups the pids the
// member libraries assigned to the same entity; those clusters decide
// which source records merge into one MEF record.
package viaf

import (
	"sort"
	"strings"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// DefaultBaseURL is the public VIAF endpoint.
const DefaultBaseURL = "https://www.viaf.org"

// cluster is one VIAF grouping under construction: the cluster pid
// plus the per source member pids and Wikipedia page links.
type cluster struct {
	pid  string
	pids map[string]string
	wiki []string
}

func newCluster(pid string) *cluster {
	return &cluster{pid: pid, pids: map[string]string{}}
}

// add records one "CODE|value" membership line of the cluster.
// Unknown codes are skipped.
func (c *cluster) add(code, value string) {
	if value == "" {
		return
	}
	if code == "Wikipedia" || strings.HasPrefix(value, "http") {
		c.wiki = append(c.wiki, value)
		return
	}
	src, ok := model.SourceByViafCode(code)
	if !ok {
		return
	}
	if _, seen := c.pids[src.Name]; !seen {
		c.pids[src.Name] = value
	}
}

// Record builds the VIAF record document. Nil when the cluster holds
// no known source at all.
func (c *cluster) Record() model.Record {
	if len(c.pids) == 0 && len(c.wiki) == 0 {
		return nil
	}
	rec := model.Record{"pid": c.pid}
	for name, pid := range c.pids {
		rec[name+"_pid"] = pid
	}
	if len(c.wiki) > 0 {
		sort.Strings(c.wiki)
		rec["wiki"] = c.wiki
	}
	return rec
}

// AgentPid returns the pid a VIAF record holds for an agent entity,
// or "".
func AgentPid(rec model.Record, e model.Entity) string {
	pid, _ := rec[e.ViafPidField()].(string)
	return pid
}
