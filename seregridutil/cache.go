/*
Copyright © 2025 the SERegrid authors.
This file is part of SERegrid.

SERegrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SERegrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SERegrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package seregridutil

import (
	"context"
	"sync/atomic"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/seregrid"
	"github.com/spatialmodel/seregrid/internal/hash"
)

// regridderRequest identifies a regridder.
type regridderRequest struct {
	Weights  string
	SkipNaN  bool
	LandFrac bool
}

// regridderCache loads each regridder once and shares it between
// concurrent requests.
type regridderCache struct {
	cache *requestcache.Cache
	log   logrus.FieldLogger

	// loads counts weight files read, for testing.
	loads int64
}

// cacheSize is the number of regridders kept in memory.
const cacheSize = 4

func newRegridderCache(workers int, log logrus.FieldLogger) *regridderCache {
	c := &regridderCache{log: log}
	c.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(regridderRequest)
		atomic.AddInt64(&c.loads, 1)
		c.log.WithField("weights", r.Weights).Info("Loading regridding weights")
		w, err := seregrid.LoadWeights(r.Weights)
		if err != nil {
			return nil, err
		}
		rg, err := seregrid.NewSERegridder(w)
		if err != nil {
			return nil, err
		}
		rg.SkipNaN = r.SkipNaN
		rg.LandFrac = r.LandFrac
		rg.Log = c.log
		return rg, nil
	}, workers, requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	return c
}

// Regridder returns the regridder for r.
func (c *regridderCache) Regridder(ctx context.Context, r regridderRequest) (*seregrid.Regridder, error) {
	result, err := c.cache.NewRequest(ctx, r, hash.Hash(r)).Result()
	if err != nil {
		return nil, err
	}
	return result.(*seregrid.Regridder), nil
}
