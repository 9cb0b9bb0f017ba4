package hnsw

// selectHeuristic implements the Malkov & Yashunin §4 neighbor-
// selection heuristic: given candidates sorted ascending by distance
// to the new node, keep a candidate c iff d(c, new) is less than
// d(c, r) for every already-kept r. The result is capped at cap.
func selectHeuristic(candidates []candidate, cap int, distBetween func(a, b NodeId) (float32, error)) ([]candidate, error) {
	kept := make([]candidate, 0, cap)

	for _, c := range candidates {
		if len(kept) >= cap {
			break
		}

		good := true

		for _, r := range kept {
			d, err := distBetween(c.node, r.node)
			if err != nil {
				return nil, err
			}

			if d <= c.dist {
				good = false
				break
			}
		}

		if good {
			kept = append(kept, c)
		}
	}

	return kept, nil
}
