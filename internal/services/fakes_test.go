package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/tokkosync/internal/models"
	"github.com/stwalsh4118/tokkosync/internal/repository"
	"github.com/stwalsh4118/tokkosync/internal/tokko"
	"github.com/stwalsh4118/tokkosync/internal/worker"
)

const testSealKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func sptr(s string) *string { return &s }

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	contacts  map[string]models.User
	locks     map[string]string
	statuses  []repository.StatusUpdate
	statusErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[string]*models.User),
		contacts: make(map[string]models.User),
		locks:    make(map[string]string),
	}
}

func (f *fakeUserRepo) FindByCredentialHash(ctx context.Context, hash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.TokkoAPIHash != nil && *u.TokkoAPIHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) AttachCredential(ctx context.Context, userID, hash, sealed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.TokkoAPIHash = &hash
	u.TokkoAPIKeyEncrypted = &sealed
	return nil
}

func (f *fakeUserRepo) AcquireSyncLock(ctx context.Context, userID, token string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[userID] != "" {
		return false, nil
	}
	f.locks[userID] = token
	return true, nil
}

func (f *fakeUserRepo) ReleaseSyncLock(ctx context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[userID] == token {
		delete(f.locks, userID)
	}
	return nil
}

func (f *fakeUserRepo) UpdateSyncStatus(ctx context.Context, userID string, update repository.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statuses = append(f.statuses, update)
	u, ok := f.users[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.SyncStatus = update.Status
	msg := update.Message
	u.SyncMessage = &msg
	if update.PropertiesCount != nil {
		count := *update.PropertiesCount
		u.SyncPropertiesCount = &count
	}
	return nil
}

func (f *fakeUserRepo) UpsertContact(ctx context.Context, contact models.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%d", *contact.AccountUserID, *contact.TokkoRole, *contact.TokkoID)
	if existing, ok := f.contacts[key]; ok {
		contact.ID = existing.ID
	} else {
		contact.ID = uuid.NewString()
	}
	f.contacts[key] = contact
	return contact.ID, nil
}

func (f *fakeUserRepo) user(id string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeUserRepo) contactCount(role string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.contacts {
		if *c.TokkoRole == role {
			n++
		}
	}
	return n
}

// fakeListingRepo is an in-memory ListingRepository that enforces the
// location parent foreign key.
type fakeListingRepo struct {
	mu            sync.Mutex
	nextID        int64
	locations     map[int64]models.Location
	locationOrder []int64
	branches      map[string]int64
	properties    map[int64]models.Property
	photos        map[[2]int64]models.Photo
	videos        map[[2]int64]models.Video
	tags          map[int64]models.Tag
	links         map[[2]int64]bool
	// unavailableAfter makes property writes fail as a store outage once
	// that many properties exist. Zero disables it.
	unavailableAfter int
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{
		locations:  make(map[int64]models.Location),
		branches:   make(map[string]int64),
		properties: make(map[int64]models.Property),
		photos:     make(map[[2]int64]models.Photo),
		videos:     make(map[[2]int64]models.Video),
		tags:       make(map[int64]models.Tag),
		links:      make(map[[2]int64]bool),
	}
}

func (f *fakeListingRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeListingRepo) LocationExists(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.locations[id]
	return ok, nil
}

func (f *fakeListingRepo) UpsertLocation(ctx context.Context, loc models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if loc.ParentLocationID != nil {
		if _, ok := f.locations[*loc.ParentLocationID]; !ok {
			return fmt.Errorf("upsert location: foreign key violation on parent %d", *loc.ParentLocationID)
		}
	}
	if existing, ok := f.locations[loc.ID]; ok && loc.ParentLocationID == nil {
		loc.ParentLocationID = existing.ParentLocationID
	}
	f.locations[loc.ID] = loc
	f.locationOrder = append(f.locationOrder, loc.ID)
	return nil
}

func (f *fakeListingRepo) UpsertBranch(ctx context.Context, b models.Branch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s|%d", b.UserID, b.TokkoID)
	if id, ok := f.branches[key]; ok {
		return id, nil
	}
	id := f.id()
	f.branches[key] = id
	return id, nil
}

func (f *fakeListingRepo) UpsertProperty(ctx context.Context, p models.Property) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.properties[p.TokkoID]; ok {
		p.ID = existing.ID
		f.properties[p.TokkoID] = p
		return p.ID, nil
	}
	if f.unavailableAfter > 0 && len(f.properties) >= f.unavailableAfter {
		return 0, fmt.Errorf("upsert property: %w: connection refused", repository.ErrStoreUnavailable)
	}
	if p.LocationID != nil {
		if _, ok := f.locations[*p.LocationID]; !ok {
			return 0, fmt.Errorf("upsert property: foreign key violation on location %d", *p.LocationID)
		}
	}
	p.ID = f.id()
	f.properties[p.TokkoID] = p
	return p.ID, nil
}

func (f *fakeListingRepo) UpsertPhoto(ctx context.Context, photo models.Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{photo.PropertyID, int64(photo.Order)}
	if existing, ok := f.photos[key]; ok {
		photo.ID = existing.ID
	} else {
		photo.ID = f.id()
	}
	f.photos[key] = photo
	return nil
}

func (f *fakeListingRepo) UpsertVideo(ctx context.Context, v models.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[[2]int64{v.PropertyID, int64(v.Order)}] = v
	return nil
}

func (f *fakeListingRepo) UpsertTag(ctx context.Context, tag models.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[tag.ID] = tag
	return nil
}

func (f *fakeListingRepo) LinkTag(ctx context.Context, propertyID, tagID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[[2]int64{propertyID, tagID}] = true
	return nil
}

func (f *fakeListingRepo) FindPropertyByID(ctx context.Context, id int64) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.properties {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

type listingCounts struct {
	locations, branches, properties, photos, videos, tags, links int
}

func (f *fakeListingRepo) counts() listingCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return listingCounts{
		locations:  len(f.locations),
		branches:   len(f.branches),
		properties: len(f.properties),
		photos:     len(f.photos),
		videos:     len(f.videos),
		tags:       len(f.tags),
		links:      len(f.links),
	}
}

// fakeFeed serves fixed listings with provider-style pagination.
type fakeFeed struct {
	mu               sync.Mutex
	properties       []tokko.PropertyDTO
	branches         []tokko.BranchDTO
	users            []tokko.UserDTO
	owners           []tokko.OwnerDTO
	locations        map[int64]tokko.LocationDTO
	propertyErrAt    map[int]error
	branchErr        error
	propertyRequests []tokko.PageRequest
	locationCalls    []int64
	contacts         []tokko.WebContact
	contactErr       error
	propertyPanic    interface{}
}

func paginate[T any](all []T, req tokko.PageRequest) *tokko.Page[T] {
	start := min(req.Offset, len(all))
	end := len(all)
	if req.Limit > 0 {
		end = min(start+req.Limit, len(all))
	}
	page := &tokko.Page[T]{
		Objects: all[start:end],
		Meta:    tokko.Meta{Offset: start, Limit: req.Limit, TotalCount: len(all)},
	}
	if end < len(all) {
		next := fmt.Sprintf("/api/v1/property/?offset=%d", end)
		page.Meta.Next = &next
	}
	return page
}

func (f *fakeFeed) ListProperties(ctx context.Context, req tokko.PageRequest) (*tokko.Page[tokko.PropertyDTO], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.propertyRequests = append(f.propertyRequests, req)
	if f.propertyPanic != nil {
		panic(f.propertyPanic)
	}
	if err := f.propertyErrAt[req.Offset]; err != nil {
		return nil, err
	}
	return paginate(f.properties, req), nil
}

func (f *fakeFeed) ListBranches(ctx context.Context, req tokko.PageRequest) (*tokko.Page[tokko.BranchDTO], error) {
	if f.branchErr != nil {
		return nil, f.branchErr
	}
	return paginate(f.branches, req), nil
}

func (f *fakeFeed) ListUsers(ctx context.Context, req tokko.PageRequest) (*tokko.Page[tokko.UserDTO], error) {
	return paginate(f.users, req), nil
}

func (f *fakeFeed) ListOwners(ctx context.Context, req tokko.PageRequest) (*tokko.Page[tokko.OwnerDTO], error) {
	return paginate(f.owners, req), nil
}

func (f *fakeFeed) GetLocation(ctx context.Context, id int64) (*tokko.LocationDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationCalls = append(f.locationCalls, id)
	loc, ok := f.locations[id]
	if !ok {
		return nil, fmt.Errorf("location %d: not found", id)
	}
	return &loc, nil
}

func (f *fakeFeed) CreateWebContact(ctx context.Context, contact tokko.WebContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contactErr != nil {
		return f.contactErr
	}
	f.contacts = append(f.contacts, contact)
	return nil
}

type fakeFeedFactory struct {
	feed *fakeFeed
	keys []string
}

func (f *fakeFeedFactory) WithKey(key string) tokko.Feed {
	f.keys = append(f.keys, key)
	return f.feed
}

// inlineRunner runs submitted tasks immediately.
type inlineRunner struct {
	err     error
	taskErr []error
}

func (r *inlineRunner) Submit(task worker.Task) error {
	if r.err != nil {
		return r.err
	}
	r.taskErr = append(r.taskErr, task.Run(context.Background()))
	return nil
}

// fakePhotoRepo is an in-memory PhotoRepository.
type fakePhotoRepo struct {
	mu       sync.Mutex
	photos   []models.Photo
	owners   map[int64]string
	markErr  error
	lostRace map[int64]bool
	listings int
}

func (f *fakePhotoRepo) ListUnmigrated(ctx context.Context, scope repository.PhotoScope, afterID int64, limit int) ([]models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings++

	sort.Slice(f.photos, func(i, j int) bool { return f.photos[i].ID < f.photos[j].ID })
	var out []models.Photo
	for _, p := range f.photos {
		if p.StoragePath != nil || p.ID <= afterID {
			continue
		}
		if scope.UserID != "" && f.owners[p.PropertyID] != scope.UserID {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePhotoRepo) MarkMigrated(ctx context.Context, photoID int64, storagePath, publicURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.lostRace[photoID] {
		return false, nil
	}
	for i := range f.photos {
		if f.photos[i].ID != photoID {
			continue
		}
		if f.photos[i].StoragePath != nil {
			return false, nil
		}
		path, u1, u2, u3 := storagePath, publicURL, publicURL, publicURL
		f.photos[i].StoragePath = &path
		f.photos[i].Image = &u1
		f.photos[i].Original = &u2
		f.photos[i].Thumb = &u3
		return true, nil
	}
	return false, nil
}

func (f *fakePhotoRepo) photo(id int64) models.Photo {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.photos {
		if p.ID == id {
			return p
		}
	}
	return models.Photo{}
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeStore) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = buf.Bytes()
	s.types[name] = contentType
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *fakeStore) URL(name string) string {
	return "https://cdn.test/photos/" + strings.TrimPrefix(name, "/")
}

func (s *fakeStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for name := range s.objects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
