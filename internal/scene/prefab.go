// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package scene

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sceneforge/sceneforge/internal/document"
)

// CheckPrefab verifies that scene sceneID may use targetID as a prefab:
// targetID and every scene it transitively instantiates must have exactly
// one root, and none of them may reference sceneID. Each visited scene is
// acquired for the duration of its inspection. The first failure cancels
// the walk and is returned.
func CheckPrefab(ctx context.Context, env document.Environment, sceneID, targetID string) error {
	if targetID == sceneID {
		return CyclicReferenceError(sceneID, targetID)
	}

	g, ctx := errgroup.WithContext(ctx)
	var (
		mu      sync.Mutex
		visited = make(map[string]bool)
	)

	var visit func(id string)
	visit = func(id string) {
		mu.Lock()
		seen := visited[id]
		visited[id] = true
		mu.Unlock()
		if seen {
			return
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, release, err := env.Acquire(ctx, id)
			if err != nil {
				return err
			}
			defer release()

			if doc.Kind.Name != KindName {
				return StructuralConstraintError(sceneID, "prefab target must be a scene")
			}
			summary := doc.Summary()
			if summary.Roots != 1 {
				return StructuralConstraintError(sceneID, "a scene needs exactly one root node to be used as a prefab")
			}
			for _, ref := range summary.Prefabs {
				if ref == sceneID {
					return CyclicReferenceError(sceneID, targetID)
				}
				visit(ref)
			}
			return nil
		})
	}

	visit(targetID)
	return g.Wait()
}
