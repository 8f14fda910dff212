package rbac

// QueryStem selects one collection and the link types joined to it
type QueryStem struct {
	CollectionID string   `json:"collection_id"`
	LinkTypeIDs  []string `json:"link_type_ids,omitempty"`
}

// Query is the stored query of a view
type Query struct {
	Stems []QueryStem `json:"stems"`
}

// LinkTypeIDs returns every link type referenced by the query
func (q Query) LinkTypeIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, stem := range q.Stems {
		for _, id := range stem.LinkTypeIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// QueryCollectionIDs returns the collections a query touches: the stem
// collections and both ends of every joined link type.
func QueryCollectionIDs(q Query, linkTypes []LinkType) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, stem := range q.Stems {
		if stem.CollectionID != "" {
			ids[stem.CollectionID] = struct{}{}
		}
	}

	byID := make(map[string]LinkType, len(linkTypes))
	for _, lt := range linkTypes {
		byID[lt.ID] = lt
	}
	for _, id := range q.LinkTypeIDs() {
		lt, ok := byID[id]
		if !ok {
			continue
		}
		for _, collectionID := range lt.CollectionIDs {
			ids[collectionID] = struct{}{}
		}
	}
	return ids
}

// NarrowerThan reports whether every collection q touches is also touched
// by view, i.e. q does not widen the view's reach.
func (q Query) NarrowerThan(view Query, linkTypes []LinkType) bool {
	allowed := QueryCollectionIDs(view, linkTypes)
	for id := range QueryCollectionIDs(q, linkTypes) {
		if _, ok := allowed[id]; !ok {
			return false
		}
	}
	return true
}
