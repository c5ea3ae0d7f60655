package gol

import "github.com/geoobj/gol/internal/exec"

// Members resolves rel's direct and transitive relation members (spec.md
// §9's cyclic-relation note), returning each member feature exactly once
// regardless of how many member paths reach it or whether the member
// graph cycles back through rel itself.
//
// Resolution needs every feature in the store reachable by FeaturePtr, so
// Members scans the whole store once per call; callers resolving many
// relations in one pass should batch them rather than calling Members in
// a loop.
func (s *Store) Members(rel *Feature) ([]*Feature, error) {
	byID := make(map[uint32]*Feature)
	if err := s.Features().Each(func(f *Feature) bool {
		byID[uint32(f.ID)] = f
		return true
	}); err != nil {
		return nil, err
	}

	root := exec.Candidate{ID: uint32(rel.ID), Members: memberIDs(rel.Members)}
	lookup := func(id uint32) (exec.Candidate, bool) {
		f, ok := byID[id]
		if !ok {
			return exec.Candidate{}, false
		}
		return exec.Candidate{ID: id, Members: memberIDs(f.Members)}, true
	}

	expanded := exec.ExpandMembers(root, lookup)
	out := make([]*Feature, 0, len(expanded))
	for _, c := range expanded {
		if f, ok := byID[c.ID]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}
