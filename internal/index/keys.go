package index

// Key layout shared with the query side.
const (
	documentPrefix    = "d|"
	tokenPrefix       = "w|"
	geohashPrefix     = "g|"
	filterPrefix      = "f|"
	housenumberPrefix = "h|"
)

// DocumentKey is the canonical location of a document and the member stored
// in every postings entry and bucket.
func DocumentKey(id string) string {
	return documentPrefix + id
}

// TokenKey is the sorted set holding the postings of token.
func TokenKey(token string) string {
	return tokenPrefix + token
}

// GeohashKey is the set of documents inside the geohash cell.
func GeohashKey(hash string) string {
	return geohashPrefix + hash
}

// FilterKey is the set of documents whose field name equals value.
func FilterKey(name, value string) string {
	return filterPrefix + name + "|" + value
}

// housenumberField is the raw document field storing one housenumber.
func housenumberField(token string) string {
	return housenumberPrefix + token
}
