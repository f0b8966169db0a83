package tokko

import "strings"

// PageRequest selects a window of a listing.
type PageRequest struct {
	Offset int
	Limit  int
}

// Meta is the pagination block of every listing response.
type Meta struct {
	Next       *string `json:"next"`
	Previous   *string `json:"previous"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	TotalCount int     `json:"total_count"`
}

// Page is one listing response.
type Page[T any] struct {
	Meta    Meta `json:"meta"`
	Objects []T  `json:"objects"`
}

// HasMore reports whether the provider advertises a next page.
func (p *Page[T]) HasMore() bool {
	return p.Meta.Next != nil && strings.TrimSpace(*p.Meta.Next) != ""
}

// PropertyDTO is a property record as returned by /property/.
type PropertyDTO struct {
	ID               Number         `json:"id"`
	ReferenceCode    *string        `json:"reference_code"`
	PublicationTitle *string        `json:"publication_title"`
	Description      *string        `json:"description"`
	Address          *string        `json:"address"`
	Type             *TypeDTO       `json:"type"`
	Operations       []OperationDTO `json:"operations"`
	Expenses         Number         `json:"expenses"`
	RoomAmount       Number         `json:"room_amount"`
	BathroomAmount   Number         `json:"bathroom_amount"`
	SuiteAmount      Number         `json:"suite_amount"`
	ToiletAmount     Number         `json:"toilet_amount"`
	ParkingLotAmount Number         `json:"parking_lot_amount"`
	Surface          Number         `json:"surface"`
	RoofedSurface    Number         `json:"roofed_surface"`
	TotalSurface     Number         `json:"total_surface"`
	GeoLat           Number         `json:"geo_lat"`
	GeoLong          Number         `json:"geo_long"`
	Age              Number         `json:"age"`
	Status           Number         `json:"status"`
	Location         *LocationDTO   `json:"location"`
	Branch           *BranchDTO     `json:"branch"`
	Producer         *UserDTO       `json:"producer"`
	Photos           []PhotoDTO     `json:"photos"`
	Videos           []VideoDTO     `json:"videos"`
	Tags             []TagDTO       `json:"tags"`
}

// TypeDTO is the property type classification.
type TypeDTO struct {
	ID   Number  `json:"id"`
	Name *string `json:"name"`
	Code *string `json:"code"`
}

// OperationDTO is one commercial operation (sale, rent) with its prices.
type OperationDTO struct {
	OperationType *string    `json:"operation_type"`
	OperationID   Number     `json:"operation_id"`
	Prices        []PriceDTO `json:"prices"`
}

// PriceDTO is one price of an operation.
type PriceDTO struct {
	Currency *string `json:"currency"`
	Price    Number  `json:"price"`
	Period   Number  `json:"period"`
}

// LocationDTO is a location record, either embedded or from /location/{id}/.
type LocationDTO struct {
	ID             Number  `json:"id"`
	Name           *string `json:"name"`
	FullLocation   *string `json:"full_location"`
	ShortLocation  *string `json:"short_location"`
	ParentDivision *string `json:"parent_division"`
	ParentID       Number  `json:"parent_id"`
	Depth          Number  `json:"depth"`
}

// BranchDTO is a branch record.
type BranchDTO struct {
	ID               Number  `json:"id"`
	Name             *string `json:"name"`
	DisplayName      *string `json:"display_name"`
	Address          *string `json:"address"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	AlternativePhone *string `json:"alternative_phone"`
	ContactTime      *string `json:"contact_time"`
	BranchType       *string `json:"branch_type"`
	IsDefault        *bool   `json:"is_default_for_web"`
	GeoLat           Number  `json:"geo_lat"`
	GeoLong          Number  `json:"geo_long"`
	Logo             *string `json:"logo"`
}

// UserDTO is an agent record from /user/ or an embedded producer.
type UserDTO struct {
	ID        Number  `json:"id"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Cellphone *string `json:"cellphone"`
}

// OwnerDTO is a property owner record from /owner/.
type OwnerDTO struct {
	ID        Number  `json:"id"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	WorkEmail *string `json:"work_email"`
	Phone     *string `json:"phone"`
	Cellphone *string `json:"cellphone"`
}

// PhotoDTO is a photo embedded in a property.
type PhotoDTO struct {
	Image        *string `json:"image"`
	Original     *string `json:"original"`
	Thumb        *string `json:"thumb"`
	Description  *string `json:"description"`
	IsFrontCover *bool   `json:"is_front_cover"`
	IsBlueprint  *bool   `json:"is_blueprint"`
	Order        Number  `json:"order"`
}

// VideoDTO is a video embedded in a property.
type VideoDTO struct {
	URL       *string `json:"url"`
	Title     *string `json:"title"`
	Provider  *string `json:"provider"`
	VideoID   *string `json:"video_id"`
	PlayerURL *string `json:"player_url"`
	Order     Number  `json:"order"`
}

// TagDTO is a tag embedded in a property.
type TagDTO struct {
	ID   Number  `json:"id"`
	Name *string `json:"name"`
	Type Number  `json:"type"`
}

// WebContact is a lead forwarded to the provider.
type WebContact struct {
	Name       string   `json:"name"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Cellphone  string   `json:"cellphone,omitempty"`
	Text       string   `json:"text,omitempty"`
	Properties []int64  `json:"properties,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}
