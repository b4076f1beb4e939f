package scraper

import "plk-instructions/pkg/domain"

// MergeDuplicates combines files that share a number into one file holding all
// their versions, keeping the order in which numbers first appear
func MergeDuplicates(files []domain.File) []domain.File {
	var order []string
	groups := make(map[string][]domain.File)
	for _, f := range files {
		if _, ok := groups[f.Number]; !ok {
			order = append(order, f.Number)
		}
		groups[f.Number] = append(groups[f.Number], f)
	}

	merged := make([]domain.File, 0, len(order))
	for _, number := range order {
		group := groups[number]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}

		var versions []domain.FileVersion
		for _, f := range group {
			versions = append(versions, f.Versions...)
		}
		merged = append(merged, domain.File{Number: number, Versions: versions})
	}
	return merged
}

// CurrentVersions selects the versions in force on today. For every file
// number it keeps the newest WCAG version and the newest regular version, in
// that order. Newest means the latest from_date; versions without one are the
// oldest and the first version wins a tie.
func CurrentVersions(files []domain.File, today domain.Date) []domain.FileVersion {
	var order []string
	active := make(map[string][]domain.FileVersion)
	for _, f := range files {
		for _, v := range f.Versions {
			if !v.ActiveOn(today) {
				continue
			}
			if _, ok := active[f.Number]; !ok {
				order = append(order, f.Number)
			}
			active[f.Number] = append(active[f.Number], v)
		}
	}

	current := make([]domain.FileVersion, 0, len(order))
	for _, number := range order {
		if v, ok := newest(active[number], true); ok {
			current = append(current, v)
		}
		if v, ok := newest(active[number], false); ok {
			current = append(current, v)
		}
	}
	return current
}

func newest(versions []domain.FileVersion, wcag bool) (domain.FileVersion, bool) {
	var (
		best  domain.FileVersion
		found bool
	)
	for _, v := range versions {
		if v.WCAG != wcag {
			continue
		}
		if !found || v.FromDate.After(best.FromDate.Time) {
			best = v
			found = true
		}
	}
	return best, found
}
