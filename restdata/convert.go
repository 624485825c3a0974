// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"time"

	"github.com/datalode/conveyor/queue"
)

// maybeTime converts a timestamp to its wire form, mapping the zero
// time to an absent field.
func maybeTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// FromItem fills in a wire item from a stored work item.
func (i *Item) FromItem(item *queue.WorkItem) {
	i.ID = item.ID
	i.SourceSystem = item.SourceSystem
	i.SourceName = item.SourceName
	i.ResourceType = item.ResourceType
	i.ResourceID = item.ResourceID
	i.Variant = string(item.Variant)
	i.RequestURI = item.RequestURI
	i.RequestMethod = item.RequestMethod
	i.RequestHeaders = item.RequestHeaders
	i.RequestBody = item.RequestBody
	i.InterrogationKey = item.InterrogationKey
	i.InputJSON = item.InputJSON
	i.Priority = item.Priority
	i.RunID = item.RunID
	i.DiscoveredFrom = item.DiscoveredFrom
	i.Rank = item.Rank
	i.Status = item.Status.String()
	i.Attempt = item.Attempt
	i.LastError = item.LastError
	i.NextRetryAt = maybeTime(item.NextRetryAt)
	i.ClaimedBy = item.ClaimedBy
	i.ClaimedAt = maybeTime(item.ClaimedAt)
	i.LeaseExpiresAt = maybeTime(item.LeaseExpiresAt)
	i.CreatedAt = maybeTime(item.CreatedAt)
	i.UpdatedAt = maybeTime(item.UpdatedAt)
}

// ToItem validates a posted wire item and converts it into a work
// item ready to enqueue.  The classification tuple is required, as is
// either a request URI or an interrogation key.  Lifecycle fields are
// deliberately not carried over; the queue assigns them.
func (i Item) ToItem() (*queue.WorkItem, error) {
	if i.SourceSystem == "" || i.SourceName == "" ||
		i.ResourceType == "" || i.ResourceID == "" {
		return nil, queue.ErrMissingClassification
	}
	if i.RequestURI == "" && i.InterrogationKey == "" {
		return nil, queue.ErrMissingPayload
	}

	item := &queue.WorkItem{
		SourceSystem:     i.SourceSystem,
		SourceName:       i.SourceName,
		ResourceType:     i.ResourceType,
		ResourceID:       i.ResourceID,
		Variant:          queue.Variant(i.Variant),
		RequestURI:       i.RequestURI,
		RequestMethod:    i.RequestMethod,
		RequestHeaders:   i.RequestHeaders,
		RequestBody:      i.RequestBody,
		InterrogationKey: i.InterrogationKey,
		InputJSON:        i.InputJSON,
		Priority:         i.Priority,
		RunID:            i.RunID,
		Rank:             i.Rank,
	}
	if i.RequestURI != "" && i.RequestMethod == "" {
		item.RequestMethod = "GET"
	}
	if _, err := item.DedupeKey(); err != nil {
		return nil, err
	}
	return item, nil
}

// FromItem fills in a short item reference.
func (s *ItemShort) FromItem(item *queue.WorkItem) {
	s.ID = item.ID
	s.SourceSystem = item.SourceSystem
	s.ResourceType = item.ResourceType
	s.ResourceID = item.ResourceID
	s.Status = item.Status.String()
}

// FromHeartbeat fills in a wire worker from a registry heartbeat.
func (w *Worker) FromHeartbeat(hb queue.Heartbeat) {
	w.WorkerID = hb.WorkerID
	w.Hostname = hb.Hostname
	w.PID = hb.PID
	w.State = hb.State.String()
	w.StartedAt = maybeTime(hb.StartedAt)
	w.LastHeartbeat = maybeTime(hb.LastHeartbeat)
	w.ItemsProcessed = hb.ItemsProcessed
	w.ItemsSucceeded = hb.ItemsSucceeded
	w.ItemsFailed = hb.ItemsFailed
	w.CurrentItemID = hb.CurrentItemID
}

// FromRun fills in a wire run from a ledger run.
func (r *Run) FromRun(run *queue.Run) {
	r.ID = run.ID
	r.ItemID = run.ItemID
	r.WorkerID = run.WorkerID
	r.Status = run.Status.String()
	r.ModelIdentity = run.ModelIdentity
	r.Options = run.Options
	r.Metrics = run.Metrics
	r.Error = run.Error
	r.StartedAt = maybeTime(run.StartedAt)
	r.EndedAt = maybeTime(run.EndedAt)
}

// FromArtifact fills in a wire artifact from a ledger artifact.
func (a *Artifact) FromArtifact(artifact *queue.Artifact) {
	a.ID = artifact.ID
	a.RunID = artifact.RunID
	a.Type = artifact.Type
	a.MIMEType = artifact.MIMEType
	a.LakeURI = artifact.LakeURI
	a.SHA256 = artifact.SHA256
	a.ByteCount = artifact.ByteCount
	a.StoredInSQL = artifact.StoredInSQL
	a.MirroredToLake = artifact.MirroredToLake
	a.Content = artifact.Content
}
