// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collateral

import (
	"sort"
	"sync/atomic"
)

// Participant is a named producer that modifies the job's parameters
// and keeps count of how its requests fared.
type Participant[P any] struct {
	name     string
	job      *Job[P]
	accepted atomic.Int64
	rejected atomic.Int64
}

// Register returns the participant called name, creating it on first
// use.
func (j *Job[P]) Register(name string) *Participant[P] {
	j.mu.Lock()
	defer j.mu.Unlock()
	if participant, ok := j.participants[name]; ok {
		return participant
	}
	participant := &Participant[P]{name: name, job: j}
	j.participants[name] = participant
	return participant
}

// Participants returns the registered names, sorted.
func (j *Job[P]) Participants() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	names := make([]string, 0, len(j.participants))
	for name := range j.participants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the participant's name.
func (p *Participant[P]) Name() string { return p.name }

// Modify applies mutate through Job.Modify and records the outcome.
func (p *Participant[P]) Modify(mutate func(*P) bool) bool {
	accepted := p.job.Modify(mutate)
	if accepted {
		p.accepted.Add(1)
	} else {
		p.rejected.Add(1)
	}
	return accepted
}

// Notify requests a cycle on the participant's job.
func (p *Participant[P]) Notify() bool { return p.job.Notify() }

// Accepted returns the number of mutations the participant committed.
func (p *Participant[P]) Accepted() int64 { return p.accepted.Load() }

// Rejected returns the number of mutations the participant's function
// declined.
func (p *Participant[P]) Rejected() int64 { return p.rejected.Load() }
