package memqueue

import (
	"sort"

	"github.com/datalode/conveyor/queue"
)

func (m *memBackend) StartRun(itemID, workerID, modelIdentity string, options map[string]interface{}) (string, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	if m.items[itemID] == nil {
		return "", queue.ErrNoSuchItem{ID: itemID}
	}

	run := &queue.Run{
		ID:            newID(),
		ItemID:        itemID,
		WorkerID:      workerID,
		ModelIdentity: modelIdentity,
		Options:       copyMap(options),
		StartedAt:     m.clk.Now(),
		Status:        queue.RunRunning,
	}
	m.runs[run.ID] = run
	m.itemRuns[itemID] = append(m.itemRuns[itemID], run.ID)
	return run.ID, nil
}

func (m *memBackend) FinishRun(runID string, status queue.RunStatus, metrics map[string]interface{}, errText string) error {
	m.sem.Lock()
	defer m.sem.Unlock()

	run := m.runs[runID]
	if run == nil {
		return queue.ErrNoSuchRun{ID: runID}
	}
	// Only the first finalization counts.
	if run.Status != queue.RunRunning {
		return nil
	}
	run.Status = status
	run.EndedAt = m.clk.Now()
	run.Metrics = copyMap(metrics)
	run.Error = errText
	return nil
}

func (m *memBackend) AttachArtifact(runID string, ref queue.ArtifactRef, artifactType, mimeType string, content []byte) error {
	m.sem.Lock()
	defer m.sem.Unlock()

	if m.runs[runID] == nil {
		return queue.ErrNoSuchRun{ID: runID}
	}

	artifact := &queue.Artifact{
		ID:             newID(),
		RunID:          runID,
		Type:           artifactType,
		LakeURI:        ref.LakeURI,
		SHA256:         ref.SHA256,
		ByteCount:      ref.ByteCount,
		MIMEType:       mimeType,
		StoredInSQL:    content != nil,
		MirroredToLake: ref.LakeURI != "",
	}
	if content != nil {
		artifact.Content = append([]byte(nil), content...)
	}
	m.artifacts[runID] = append(m.artifacts[runID], artifact)
	return nil
}

func (m *memBackend) Runs(itemID string) ([]*queue.Run, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	var result []*queue.Run
	for _, runID := range m.itemRuns[itemID] {
		run := *m.runs[runID]
		run.Options = copyMap(run.Options)
		run.Metrics = copyMap(run.Metrics)
		result = append(result, &run)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}

func (m *memBackend) RunArtifacts(runID string) ([]*queue.Artifact, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	var result []*queue.Artifact
	for _, artifact := range m.artifacts[runID] {
		dup := *artifact
		if artifact.Content != nil {
			dup.Content = append([]byte(nil), artifact.Content...)
		}
		result = append(result, &dup)
	}
	return result, nil
}
