package tokko

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stwalsh4118/tokkosync/internal/models"
	"github.com/stwalsh4118/tokkosync/internal/pick"
)

// Price selection keywords. An operation whose type mentions a sale keyword
// wins over the others; within it, a price in the preferred currency wins.
// Otherwise the last candidate is used.
var (
	SaleKeywords      = []string{"sale", "venta"}
	PreferredCurrency = "USD"
)

// MapProperty maps a property record owned by userID. Nested photos,
// videos and tags are mapped separately once the property has a local id.
func MapProperty(dto PropertyDTO, userID string) (models.Property, error) {
	tokkoID, ok := dto.ID.ID()
	if !ok {
		return models.Property{}, fmt.Errorf("property: %w", ErrMissingKey)
	}

	p := models.Property{
		UserID:           userID,
		TokkoID:          tokkoID,
		ReferenceCode:    text(dto.ReferenceCode),
		Title:            text(dto.PublicationTitle),
		Description:      text(dto.Description),
		Address:          text(dto.Address),
		Expenses:         dto.Expenses.Float(),
		RoomAmount:       dto.RoomAmount.Int(),
		BathroomAmount:   dto.BathroomAmount.Int(),
		SuiteAmount:      dto.SuiteAmount.Int(),
		ToiletAmount:     dto.ToiletAmount.Int(),
		ParkingLotAmount: dto.ParkingLotAmount.Int(),
		Surface:          dto.Surface.Float(),
		RoofedSurface:    dto.RoofedSurface.Float(),
		TotalSurface:     dto.TotalSurface.Float(),
		GeoLat:           dto.GeoLat.Float(),
		GeoLong:          dto.GeoLong.Float(),
		Age:              dto.Age.Int(),
		Status:           dto.Status.Int(),
	}

	if dto.Type != nil {
		p.PropertyType = text(dto.Type.Name)
		p.PropertyTypeCode = text(dto.Type.Code)
	}
	if dto.Location != nil {
		p.LocationID = dto.Location.ID.IDPtr()
	}
	if dto.Branch != nil {
		p.BranchTokkoID = dto.Branch.ID.IDPtr()
	}
	if dto.Producer != nil {
		p.ProducerTokkoID = dto.Producer.ID.IDPtr()
	}

	if op, found := pick.Preferred(dto.Operations, func(o OperationDTO) string {
		return deref(o.OperationType)
	}, SaleKeywords...); found {
		p.OperationType = text(op.OperationType)

		if price, found := pick.Preferred(op.Prices, func(pr PriceDTO) string {
			return deref(pr.Currency)
		}, PreferredCurrency); found {
			p.Price = price.Price.Float()
			p.Currency = text(price.Currency)
		}
	}

	return p, nil
}

// MapPhotos maps the photos of a property. Order defaults to the position
// in the list. Photos without any URL are skipped and reported.
func MapPhotos(propertyID int64, dtos []PhotoDTO) ([]models.Photo, []error) {
	photos := make([]models.Photo, 0, len(dtos))
	var errs []error

	explicit := make([]Number, len(dtos))
	for i, dto := range dtos {
		explicit[i] = dto.Order
	}
	orders := slotOrders(explicit)

	for i, dto := range dtos {
		image, original, thumb := text(dto.Image), text(dto.Original), text(dto.Thumb)
		if image == nil && original == nil && thumb == nil {
			errs = append(errs, fmt.Errorf("photo %d of property %d: no image url", i, propertyID))
			continue
		}

		photos = append(photos, models.Photo{
			PropertyID:   propertyID,
			Order:        orders[i],
			Image:        image,
			Original:     original,
			Thumb:        thumb,
			Description:  text(dto.Description),
			IsFrontCover: dto.IsFrontCover != nil && *dto.IsFrontCover,
			IsBlueprint:  dto.IsBlueprint != nil && *dto.IsBlueprint,
		})
	}

	return photos, errs
}

// MapVideos maps the videos of a property. Order defaults to the position
// in the list.
func MapVideos(propertyID int64, dtos []VideoDTO) ([]models.Video, []error) {
	videos := make([]models.Video, 0, len(dtos))
	var errs []error

	explicit := make([]Number, len(dtos))
	for i, dto := range dtos {
		explicit[i] = dto.Order
	}
	orders := slotOrders(explicit)

	for i, dto := range dtos {
		url := text(dto.URL)
		if url == nil {
			url = text(dto.PlayerURL)
		}
		if url == nil {
			errs = append(errs, fmt.Errorf("video %d of property %d: no url", i, propertyID))
			continue
		}

		videos = append(videos, models.Video{
			PropertyID: propertyID,
			Order:      orders[i],
			URL:        url,
			Title:      text(dto.Title),
			Provider:   text(dto.Provider),
			VideoID:    text(dto.VideoID),
			PlayerURL:  text(dto.PlayerURL),
		})
	}

	return videos, errs
}

// slotOrders resolves the "order" of each media item. The provider's order
// is used when present, falling back to the list position; if two items
// end up in the same slot every item takes its list position instead, so
// no row overwrites another on (property_id, "order").
func slotOrders(explicit []Number) []int {
	orders := make([]int, len(explicit))
	seen := make(map[int]struct{}, len(explicit))
	unique := true

	for i, n := range explicit {
		orders[i] = i
		if v := n.Int(); v != nil && *v >= 0 {
			orders[i] = *v
		}
		if _, dup := seen[orders[i]]; dup {
			unique = false
		}
		seen[orders[i]] = struct{}{}
	}

	if !unique {
		for i := range orders {
			orders[i] = i
		}
	}
	return orders
}

// MapTags maps tag records, skipping those without an id.
func MapTags(dtos []TagDTO) ([]models.Tag, []error) {
	tags := make([]models.Tag, 0, len(dtos))
	var errs []error

	for i, dto := range dtos {
		id, ok := dto.ID.ID()
		if !ok {
			errs = append(errs, fmt.Errorf("tag %d: %w", i, ErrMissingKey))
			continue
		}

		tagType := 0
		if n := dto.Type.Int(); n != nil {
			tagType = *n
		}

		tags = append(tags, models.Tag{ID: id, Name: text(dto.Name), Type: tagType})
	}

	return tags, errs
}

// MapLocation maps a location record.
func MapLocation(dto LocationDTO) (models.Location, error) {
	id, ok := dto.ID.ID()
	if !ok {
		return models.Location{}, fmt.Errorf("location: %w", ErrMissingKey)
	}

	loc := models.Location{
		ID:               id,
		Name:             text(dto.Name),
		FullLocation:     text(dto.FullLocation),
		ShortLocation:    text(dto.ShortLocation),
		ParentLocationID: ParentLocationID(dto),
		Depth:            dto.Depth.Int(),
	}
	if loc.ParentLocationID != nil && *loc.ParentLocationID == id {
		loc.ParentLocationID = nil
	}
	return loc, nil
}

// ParentLocationID extracts the parent id from parent_id or from the
// parent_division resource URI ("/api/v1/location/123/").
func ParentLocationID(dto LocationDTO) *int64 {
	if id := dto.ParentID.IDPtr(); id != nil {
		return id
	}
	if dto.ParentDivision == nil {
		return nil
	}

	parts := strings.Split(strings.Trim(*dto.ParentDivision, "/ "), "/")
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || id < 1 {
		return nil
	}
	return &id
}

// MapBranch maps a branch record owned by userID.
func MapBranch(dto BranchDTO, userID string) (models.Branch, error) {
	id, ok := dto.ID.ID()
	if !ok {
		return models.Branch{}, fmt.Errorf("branch: %w", ErrMissingKey)
	}

	return models.Branch{
		UserID:           userID,
		TokkoID:          id,
		Name:             text(dto.Name),
		DisplayName:      text(dto.DisplayName),
		Address:          text(dto.Address),
		Email:            text(dto.Email),
		Phone:            text(dto.Phone),
		AlternativePhone: text(dto.AlternativePhone),
		ContactTime:      text(dto.ContactTime),
		BranchType:       text(dto.BranchType),
		IsDefault:        dto.IsDefault,
		GeoLat:           dto.GeoLat.Float(),
		GeoLong:          dto.GeoLong.Float(),
		Logo:             text(dto.Logo),
	}, nil
}

// MapAgent maps an agent record into a contact row of accountUserID.
func MapAgent(dto UserDTO, accountUserID string) (models.User, error) {
	return MapContact(ContactFields{
		ID:    dto.ID,
		Name:  dto.Name,
		Email: dto.Email,
		Phone: firstText(dto.Phone, dto.Cellphone),
	}, accountUserID, models.ContactRoleAgent)
}

// MapOwner maps an owner record into a contact row of accountUserID.
func MapOwner(dto OwnerDTO, accountUserID string) (models.User, error) {
	return MapContact(ContactFields{
		ID:    dto.ID,
		Name:  dto.Name,
		Email: firstText(dto.Email, dto.WorkEmail),
		Phone: firstText(dto.Cellphone, dto.Phone),
	}, accountUserID, models.ContactRoleOwner)
}

// ContactFields are the provider fields shared by agents and owners.
type ContactFields struct {
	ID    Number
	Name  *string
	Email *string
	Phone *string
}

// MapContact builds a secondary user row. The local id is left empty; it
// is assigned when the row is first inserted.
func MapContact(f ContactFields, accountUserID, role string) (models.User, error) {
	id, ok := f.ID.ID()
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", role, ErrMissingKey)
	}

	r := role
	account := accountUserID
	return models.User{
		TokkoID:       &id,
		TokkoRole:     &r,
		AccountUserID: &account,
		Name:          text(f.Name),
		Email:         text(f.Email),
		Phone:         text(f.Phone),
		SyncStatus:    models.SyncStatusIdle,
	}, nil
}

// text trims s and treats blank strings as absent.
func text(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func firstText(values ...*string) *string {
	for _, v := range values {
		if t := text(v); t != nil {
			return t
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
