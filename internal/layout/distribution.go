package layout

// Distribution counts how many buckets each subvolume owns, keyed by name.
func Distribution(l Layout) (map[string]int, error) {
	counts := make(map[string]int)
	for i := 0; i < l.Len(); i++ {
		sv, err := l.Bucket(i)
		if err != nil {
			return nil, err
		}
		counts[sv.Name()]++
	}
	return counts, nil
}
