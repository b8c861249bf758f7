package fixtures

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/PascalRepond/rero-mef/internal/model"
	"github.com/PascalRepond/rero-mef/internal/viaf"
)

// CreateViafFiles turns a VIAF clusters dump into the two COPY files
// of the viaf entity. Returns the number of records written.
func CreateViafFiles(dump io.Reader, pidstore, metadata io.Writer, created time.Time) (int, error) {
	w := NewCSVWriter(pidstore, metadata, created)
	err := viaf.ReadClusters(dump, func(rec model.Record) error {
		return w.Write(rec)
	})
	return w.Count(), err
}

// ReadPidSet collects the pids of a pidstore COPY file.
func ReadPidSet(r io.Reader) (map[string]bool, error) {
	pids := map[string]bool{}
	err := ReadPidstoreCSV(r, func(row PidstoreRow) error {
		pids[row.Pid] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pids, nil
}

// CreateMEFFiles builds the MEF COPY files from a VIAF metadata COPY
// file and the pid sets of the loaded agents. MEF records for agents
// linked by a VIAF cluster come first, then one record per agent no
// cluster claims. Pids are assigned sequentially from 1; the returned
// count doubles as the highest pid, ready for SetMEFPidFloor.
//
// The agentPids sets are consumed: pids still present afterwards were
// claimed by no cluster and got a MEF record of their own.
func CreateMEFFiles(viafMetadata io.Reader, agentPids map[model.Entity]map[string]bool, pidstore, metadata io.Writer, baseURL string, created time.Time) (int, error) {
	w := NewCSVWriter(pidstore, metadata, created)
	schema := model.MEFSchemaURL(baseURL)
	mefPid := 1

	write := func(mef *model.MEFRecord) error {
		rec, err := mef.ToRecord()
		if err != nil {
			return err
		}
		if err := w.Write(rec); err != nil {
			return err
		}
		mefPid++
		return nil
	}

	err := ReadMetadataCSV(viafMetadata, func(row MetadataRow) error {
		mef := &model.MEFRecord{
			Schema: schema,
			Pid:    strconv.Itoa(mefPid),
		}
		for _, e := range model.AgentEntities {
			pid, _ := row.Data[e.ViafPidField()].(string)
			if pid == "" || !agentPids[e][pid] {
				continue
			}
			mef.ViafPid = row.Data.Pid()
			delete(agentPids[e], pid)
			mef.SetSourceRef(e, &model.Ref{Ref: model.RefURL(baseURL, e, pid)})
		}
		// Clusters touching no loaded agent produce no MEF record.
		if mef.ViafPid == "" {
			return nil
		}
		return write(mef)
	})
	if err != nil {
		return w.Count(), err
	}

	for _, e := range model.AgentEntities {
		rest := make([]string, 0, len(agentPids[e]))
		for pid := range agentPids[e] {
			rest = append(rest, pid)
		}
		sort.Strings(rest)
		for _, pid := range rest {
			mef := &model.MEFRecord{
				Schema: schema,
				Pid:    strconv.Itoa(mefPid),
			}
			mef.SetSourceRef(e, &model.Ref{Ref: model.RefURL(baseURL, e, pid)})
			if err := write(mef); err != nil {
				return w.Count(), err
			}
		}
	}
	return w.Count(), nil
}
