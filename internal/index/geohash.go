package index

import (
	"github.com/mmcloughlin/geohash"
)

// Geohash encodes a coordinate at the configured precision. Changing the
// precision invalidates every stored bucket; a full reindex is required.
func (ix *Indexer) Geohash(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, uint(ix.cfg.GeohashPrecision))
}

func (ix *Indexer) indexGeohash(w Writer, key string, lat, lon float64) {
	w.SAdd(GeohashKey(ix.Geohash(lat, lon)), key)
}

func (ix *Indexer) deindexGeohash(w Writer, key string, lat, lon string) {
	flat, err := ParseFloat(lat)
	if err != nil {
		return
	}
	flon, err := ParseFloat(lon)
	if err != nil {
		return
	}
	w.SRem(GeohashKey(ix.Geohash(flat, flon)), key)
}
