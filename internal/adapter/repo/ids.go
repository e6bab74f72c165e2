package repo

import "github.com/google/uuid"

// canonicalID returns id in the form the uuid columns store. Ids that could
// never match a row yield notFound instead of a Postgres cast error (22P02).
func canonicalID(id string, notFound error) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", notFound
	}
	return parsed.String(), nil
}
