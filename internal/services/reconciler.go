package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/metrics"
	"github.com/stwalsh4118/tokkosync/internal/models"
	"github.com/stwalsh4118/tokkosync/internal/repository"
	"github.com/stwalsh4118/tokkosync/internal/tokko"
)

const (
	// maxListPages bounds paging of the unbounded listings (branches,
	// agents, owners).
	maxListPages     = 50
	maxLocationDepth = 10
	progressEvery    = 10
)

// Entity labels used in item errors and metrics.
const (
	entityLocation = "location"
	entityBranch   = "branch"
	entityAgent    = "user"
	entityOwner    = "owner"
	entityProperty = "property"
	entityPhoto    = "photo"
	entityVideo    = "video"
	entityTag      = "tag"
)

// reconciler writes one feed snapshot in dependency order. Item failures
// are collected on the result; store outages and deadline expiry abort.
type reconciler struct {
	svc       *syncService
	sr        *syncRun
	feed      tokko.Feed
	log       *logger.Logger
	result    *SyncResult
	locations map[int64]bool
}

func newReconciler(svc *syncService, sr *syncRun, log *logger.Logger) *reconciler {
	return &reconciler{
		svc:       svc,
		sr:        sr,
		feed:      svc.feeds.WithKey(sr.key),
		log:       log,
		result:    &SyncResult{UserID: sr.user.ID, Errors: []string{}},
		locations: make(map[int64]bool),
	}
}

func (r *reconciler) reconcile(ctx context.Context) error {
	props, err := r.fetchProperties(ctx)
	if err != nil {
		return err
	}
	r.progress(ctx, fmt.Sprintf("Fetched %d properties", len(props)))

	steps := []struct {
		name string
		run  func(context.Context, []tokko.PropertyDTO) error
	}{
		{"locations", r.syncLocations},
		{"branches", r.syncBranches},
		{"users", r.syncAgents},
		{"owners", r.syncOwners},
		{"properties", r.syncProperties},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.progress(ctx, "Syncing "+step.name)
		if err := step.run(ctx, props); err != nil {
			return err
		}
	}
	return nil
}

// fetchProperties pages through properties up to the run limit. Only a
// failure on the first page is fatal.
func (r *reconciler) fetchProperties(ctx context.Context) ([]tokko.PropertyDTO, error) {
	limit := r.sr.limit
	var out []tokko.PropertyDTO

	for offset := 0; len(out) < limit; {
		size := min(r.svc.cfg.PageSize, limit-len(out))
		page, err := r.feed.ListProperties(ctx, tokko.PageRequest{Offset: offset, Limit: size})
		if err != nil {
			if offset == 0 {
				return nil, fmt.Errorf("failed to fetch properties: %w", err)
			}
			if ferr := r.fail(ctx, entityProperty, fmt.Errorf("fetch page at offset %d: %w", offset, err)); ferr != nil {
				return out, ferr
			}
			break
		}

		out = append(out, page.Objects...)
		if len(page.Objects) == 0 || !page.HasMore() {
			break
		}
		offset += len(page.Objects)
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// syncLocations writes every location referenced by the fetched
// properties, fetching missing ancestors so parents land before children.
func (r *reconciler) syncLocations(ctx context.Context, props []tokko.PropertyDTO) error {
	for _, p := range props {
		if p.Location == nil {
			continue
		}
		if err := r.ensureLocation(ctx, *p.Location, 0); err != nil {
			return err
		}
	}
	metrics.SyncEntitiesTotal.WithLabelValues(entityLocation).Add(float64(r.result.LocationsSynced))
	return nil
}

func (r *reconciler) ensureLocation(ctx context.Context, dto tokko.LocationDTO, depth int) error {
	loc, err := tokko.MapLocation(dto)
	if err != nil {
		return r.fail(ctx, entityLocation, err)
	}
	if r.locations[loc.ID] {
		return nil
	}

	if loc.ParentLocationID != nil {
		ready, err := r.parentReady(ctx, *loc.ParentLocationID, depth)
		if err != nil {
			return err
		}
		if !ready {
			loc.ParentLocationID = nil
		}
	}

	if err := r.svc.listings.UpsertLocation(ctx, loc); err != nil {
		return r.fail(ctx, entityLocation, fmt.Errorf("location %d: %w", loc.ID, err))
	}
	if !r.locations[loc.ID] {
		r.result.LocationsSynced++
	}
	r.locations[loc.ID] = true
	return nil
}

// parentReady makes sure parentID is stored. It reports false when the
// parent could not be written, in which case the child is written without
// its parent link.
func (r *reconciler) parentReady(ctx context.Context, parentID int64, depth int) (bool, error) {
	if r.locations[parentID] {
		return true, nil
	}
	if depth >= maxLocationDepth {
		return false, r.fail(ctx, entityLocation, fmt.Errorf("location %d: hierarchy deeper than %d", parentID, maxLocationDepth))
	}

	exists, err := r.svc.listings.LocationExists(ctx, parentID)
	if err != nil {
		return false, r.fail(ctx, entityLocation, fmt.Errorf("location %d: %w", parentID, err))
	}
	if exists {
		return true, nil
	}

	parent, err := r.feed.GetLocation(ctx, parentID)
	if err != nil {
		return false, r.fail(ctx, entityLocation, fmt.Errorf("parent location %d: %w", parentID, err))
	}
	if err := r.ensureLocation(ctx, *parent, depth+1); err != nil {
		return false, err
	}
	return r.locations[parentID], nil
}

func (r *reconciler) syncBranches(ctx context.Context, props []tokko.PropertyDTO) error {
	branches, err := fetchAll(ctx, r.feed.ListBranches, r.svc.cfg.PageSize)
	if err != nil {
		if ferr := r.fail(ctx, entityBranch, fmt.Errorf("list branches: %w", err)); ferr != nil {
			return ferr
		}
	}
	for _, p := range props {
		if p.Branch != nil {
			branches = append(branches, *p.Branch)
		}
	}

	seen := make(map[int64]bool)
	for _, dto := range branches {
		branch, err := tokko.MapBranch(dto, r.sr.user.ID)
		if err != nil {
			if ferr := r.fail(ctx, entityBranch, err); ferr != nil {
				return ferr
			}
			continue
		}
		if seen[branch.TokkoID] {
			continue
		}
		seen[branch.TokkoID] = true

		if _, err := r.svc.listings.UpsertBranch(ctx, branch); err != nil {
			if ferr := r.fail(ctx, entityBranch, fmt.Errorf("branch %d: %w", branch.TokkoID, err)); ferr != nil {
				return ferr
			}
			continue
		}
		r.result.BranchesSynced++
	}

	metrics.SyncEntitiesTotal.WithLabelValues(entityBranch).Add(float64(r.result.BranchesSynced))
	return nil
}

// syncAgents writes the account's agents plus any producer embedded in a
// property that the listing did not return.
func (r *reconciler) syncAgents(ctx context.Context, props []tokko.PropertyDTO) error {
	agents, err := fetchAll(ctx, r.feed.ListUsers, r.svc.cfg.PageSize)
	if err != nil {
		if ferr := r.fail(ctx, entityAgent, fmt.Errorf("list users: %w", err)); ferr != nil {
			return ferr
		}
	}
	for _, p := range props {
		if p.Producer != nil {
			agents = append(agents, *p.Producer)
		}
	}

	contacts := make([]models.User, 0, len(agents))
	for _, dto := range agents {
		contact, err := tokko.MapAgent(dto, r.sr.user.ID)
		if err != nil {
			if ferr := r.fail(ctx, entityAgent, err); ferr != nil {
				return ferr
			}
			continue
		}
		contacts = append(contacts, contact)
	}

	n, err := r.writeContacts(ctx, entityAgent, contacts)
	r.result.UsersSynced += n
	return err
}

func (r *reconciler) syncOwners(ctx context.Context, _ []tokko.PropertyDTO) error {
	owners, err := fetchAll(ctx, r.feed.ListOwners, r.svc.cfg.PageSize)
	if err != nil {
		if ferr := r.fail(ctx, entityOwner, fmt.Errorf("list owners: %w", err)); ferr != nil {
			return ferr
		}
	}

	contacts := make([]models.User, 0, len(owners))
	for _, dto := range owners {
		contact, err := tokko.MapOwner(dto, r.sr.user.ID)
		if err != nil {
			if ferr := r.fail(ctx, entityOwner, err); ferr != nil {
				return ferr
			}
			continue
		}
		contacts = append(contacts, contact)
	}

	n, err := r.writeContacts(ctx, entityOwner, contacts)
	r.result.OwnersSynced += n
	return err
}

func (r *reconciler) writeContacts(ctx context.Context, entity string, contacts []models.User) (int, error) {
	seen := make(map[int64]bool)
	written := 0
	for _, c := range contacts {
		if seen[*c.TokkoID] {
			continue
		}
		seen[*c.TokkoID] = true

		if _, err := r.svc.users.UpsertContact(ctx, c); err != nil {
			if ferr := r.fail(ctx, entity, fmt.Errorf("%s %d: %w", entity, *c.TokkoID, err)); ferr != nil {
				return written, ferr
			}
			continue
		}
		written++
	}
	metrics.SyncEntitiesTotal.WithLabelValues(entity).Add(float64(written))
	return written, nil
}

func (r *reconciler) syncProperties(ctx context.Context, props []tokko.PropertyDTO) error {
	total := len(props)
	for i, dto := range props {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.syncProperty(ctx, dto); err != nil {
			return err
		}
		if done := i + 1; done%progressEvery == 0 && done < total {
			r.progress(ctx, fmt.Sprintf("Synced %d/%d properties", done, total))
		}
	}
	metrics.SyncEntitiesTotal.WithLabelValues(entityProperty).Add(float64(r.result.PropertiesSynced))
	return nil
}

// syncProperty writes a property followed by its photos, videos and tags.
func (r *reconciler) syncProperty(ctx context.Context, dto tokko.PropertyDTO) error {
	property, err := tokko.MapProperty(dto, r.sr.user.ID)
	if err != nil {
		return r.fail(ctx, entityProperty, err)
	}
	// A location that failed to write this run would break the foreign key
	if property.LocationID != nil && !r.locations[*property.LocationID] {
		property.LocationID = nil
	}

	id, err := r.svc.listings.UpsertProperty(ctx, property)
	if err != nil {
		return r.fail(ctx, entityProperty, fmt.Errorf("property %d: %w", property.TokkoID, err))
	}
	r.result.PropertiesSynced++

	photos, errs := tokko.MapPhotos(id, dto.Photos)
	if err := r.failAll(ctx, entityPhoto, errs); err != nil {
		return err
	}
	for _, photo := range photos {
		if err := r.svc.listings.UpsertPhoto(ctx, photo); err != nil {
			if ferr := r.fail(ctx, entityPhoto, fmt.Errorf("photo %d of property %d: %w", photo.Order, property.TokkoID, err)); ferr != nil {
				return ferr
			}
		}
	}

	videos, errs := tokko.MapVideos(id, dto.Videos)
	if err := r.failAll(ctx, entityVideo, errs); err != nil {
		return err
	}
	for _, video := range videos {
		if err := r.svc.listings.UpsertVideo(ctx, video); err != nil {
			if ferr := r.fail(ctx, entityVideo, fmt.Errorf("video %d of property %d: %w", video.Order, property.TokkoID, err)); ferr != nil {
				return ferr
			}
		}
	}

	tags, errs := tokko.MapTags(dto.Tags)
	if err := r.failAll(ctx, entityTag, errs); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := r.svc.listings.UpsertTag(ctx, tag); err != nil {
			if ferr := r.fail(ctx, entityTag, fmt.Errorf("tag %d: %w", tag.ID, err)); ferr != nil {
				return ferr
			}
			continue
		}
		if err := r.svc.listings.LinkTag(ctx, id, tag.ID); err != nil {
			if ferr := r.fail(ctx, entityTag, fmt.Errorf("tag %d of property %d: %w", tag.ID, property.TokkoID, err)); ferr != nil {
				return ferr
			}
		}
	}

	return nil
}

// fail records an item error and returns nil, or returns the error when
// it must abort the run.
func (r *reconciler) fail(ctx context.Context, entity string, err error) error {
	if errors.Is(err, repository.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", entity, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	r.result.Errors = append(r.result.Errors, fmt.Sprintf("%s: %v", entity, err))
	metrics.SyncItemErrors.WithLabelValues(entity).Inc()
	r.log.Warn("Sync item failed", map[string]interface{}{
		"entity": entity,
		"error":  err.Error(),
	})
	return nil
}

func (r *reconciler) failAll(ctx context.Context, entity string, errs []error) error {
	for _, err := range errs {
		if ferr := r.fail(ctx, entity, err); ferr != nil {
			return ferr
		}
	}
	return nil
}

func (r *reconciler) progress(ctx context.Context, message string) {
	r.svc.writeStatus(ctx, r.sr.user.ID, repository.StatusUpdate{
		Status:  models.SyncStatusSyncing,
		Message: message,
	})
}

// fetchAll pages through a listing until the provider reports no next page.
func fetchAll[T any](
	ctx context.Context,
	fetch func(context.Context, tokko.PageRequest) (*tokko.Page[T], error),
	pageSize int,
) ([]T, error) {
	var out []T
	offset := 0
	for range maxListPages {
		page, err := fetch(ctx, tokko.PageRequest{Offset: offset, Limit: pageSize})
		if err != nil {
			return out, err
		}
		out = append(out, page.Objects...)
		if len(page.Objects) == 0 || !page.HasMore() {
			return out, nil
		}
		offset += len(page.Objects)
	}
	return out, nil
}
