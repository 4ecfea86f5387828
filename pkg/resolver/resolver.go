// Copyright 2025 venslabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resolver obtains the resolved package graph of each analysis unit.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 300 * time.Second

// Resolution is the resolved dependency data of one unit.
type Resolution struct {
	// Version is the unit version recorded by restore, if any.
	Version string
	Targets []types.ResolvedTarget
}

// Backend resolves one unit. Alternate ecosystems plug in here without touching later stages.
type Backend interface {
	Resolve(ctx context.Context, unit *types.AnalysisUnit, scope types.Scope) (*Resolution, error)
}

// UnitResult is the outcome of resolving one unit. Err is a *ResolutionError or a
// *MissingResolutionDataError when resolution failed.
type UnitResult struct {
	Unit *types.AnalysisUnit
	Resolution
	Err error
}

// Opts configures the Resolver.
type Opts struct {
	Backends map[types.UnitKind]Backend
	Scope    types.Scope
	// Timeout bounds the resolution of each unit, restore included.
	Timeout time.Duration
	// Parallelism caps concurrent unit resolutions. Zero means runtime.NumCPU().
	Parallelism int
}

// Resolver resolves units concurrently on a bounded pool.
type Resolver struct {
	o Opts
}

func New(o Opts) (*Resolver, error) {
	if len(o.Backends) == 0 {
		return nil, errors.New("no resolution backends")
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.NumCPU()
	}
	return &Resolver{o: o}, nil
}

// Resolve resolves every unit and returns one result per unit, in input order.
// A failing or timed-out unit never cancels its siblings.
func (r *Resolver) Resolve(ctx context.Context, units []*types.AnalysisUnit) []UnitResult {
	results := make([]UnitResult, len(units))
	var g errgroup.Group
	g.SetLimit(r.o.Parallelism)
	for i, u := range units {
		g.Go(func() error {
			results[i] = r.resolveUnit(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	failed := lo.CountBy(results, func(res UnitResult) bool { return res.Err != nil })
	slog.InfoContext(ctx, "Units resolved", "total", len(units), "failed", failed)
	return results
}

func (r *Resolver) resolveUnit(ctx context.Context, u *types.AnalysisUnit) UnitResult {
	res := UnitResult{Unit: u}
	b, ok := r.o.Backends[u.Kind]
	if !ok {
		res.Err = r.wrap(u, fmt.Errorf("no backend for %s units", u.Kind))
		return res
	}

	uctx, cancel := context.WithTimeout(ctx, r.o.Timeout)
	defer cancel()
	began := time.Now()
	resolution, err := b.Resolve(uctx, u, r.o.Scope)
	if err == nil && uctx.Err() != nil {
		err = uctx.Err()
	}
	if err != nil {
		if errors.Is(uctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v: %w", r.o.Timeout, err)
		}
		var missing *MissingResolutionDataError
		if errors.As(err, &missing) {
			res.Err = missing
		} else {
			res.Err = r.wrap(u, err)
		}
		slog.WarnContext(ctx, "Unit resolution failed", "unit", u.Name, "framework", r.o.Scope.Framework, "runtime", r.o.Scope.Runtime, "error", err)
		return res
	}

	res.Version = resolution.Version
	res.Targets = lo.Filter(resolution.Targets, func(t types.ResolvedTarget, _ int) bool {
		return r.o.Scope.Matches(t.Framework, t.Runtime) || (u.Kind == types.UnitKindLegacy && t.Runtime == "")
	})
	slog.DebugContext(ctx, "Unit resolved", "unit", u.Name, "targets", len(res.Targets), "elapsed", time.Since(began))
	return res
}

func (r *Resolver) wrap(u *types.AnalysisUnit, err error) error {
	return &ResolutionError{Unit: u.Name, Framework: r.o.Scope.Framework, Runtime: r.o.Scope.Runtime, Err: err}
}
