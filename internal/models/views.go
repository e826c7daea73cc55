package models

import "time"

type BookingUserRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type BookingItemRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BookingResponse is the client-facing shape of a booking.
type BookingResponse struct {
	ID     int64          `json:"id"`
	Start  time.Time      `json:"start"`
	End    time.Time      `json:"end"`
	Status BookingStatus  `json:"status"`
	Booker BookingUserRef `json:"booker"`
	Item   BookingItemRef `json:"item"`
}

func NewBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		ID:     b.ID,
		Start:  b.Start,
		End:    b.End,
		Status: b.Status,
		Booker: BookingUserRef{ID: b.BookerID, Name: b.BookerName},
		Item:   BookingItemRef{ID: b.ItemID, Name: b.ItemName},
	}
}

func NewBookingResponses(bookings []*Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, NewBookingResponse(b))
	}
	return out
}

type BookingShort struct {
	ID       int64 `json:"id"`
	BookerID int64 `json:"bookerId"`
}

func NewBookingShort(b *Booking) *BookingShort {
	if b == nil {
		return nil
	}
	return &BookingShort{ID: b.ID, BookerID: b.BookerID}
}

type CommentResponse struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	AuthorName string    `json:"authorName"`
	Created    time.Time `json:"created"`
}

func NewCommentResponse(c *Comment) CommentResponse {
	return CommentResponse{ID: c.ID, Text: c.Text, AuthorName: c.AuthorName, Created: c.Created}
}

type ItemResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Available   bool              `json:"available"`
	OwnerID     int64             `json:"ownerId"`
	RequestID   *int64            `json:"requestId,omitempty"`
	LastBooking *BookingShort     `json:"lastBooking"`
	NextBooking *BookingShort     `json:"nextBooking"`
	Comments    []CommentResponse `json:"comments"`
}

func NewItemResponse(item *Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Available:   item.Available,
		OwnerID:     item.OwnerID,
		RequestID:   item.RequestID,
		Comments:    []CommentResponse{},
	}
}

type RequestResponse struct {
	ID          int64          `json:"id"`
	Description string         `json:"description"`
	RequestorID int64          `json:"requestorId"`
	Created     time.Time      `json:"created"`
	Items       []ItemResponse `json:"items"`
}

func NewRequestResponse(r *ItemRequest, items []*Item) RequestResponse {
	resp := RequestResponse{
		ID:          r.ID,
		Description: r.Description,
		RequestorID: r.RequestorID,
		Created:     r.Created,
		Items:       make([]ItemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, NewItemResponse(item))
	}
	return resp
}

// CreateBookingRequest is the body of a booking creation call.
type CreateBookingRequest struct {
	ItemID int64     `json:"itemId" binding:"required"`
	Start  time.Time `json:"start" binding:"required"`
	End    time.Time `json:"end" binding:"required"`
}
