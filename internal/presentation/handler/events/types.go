package events

import "time"

// recordEventRequest is the body posted by the tracking script
type recordEventRequest struct {
	Event struct {
		Name         string `json:"name" example:"Pageview"`
		TrackingCode string `json:"trackingCode" example:"7-4242"`
	} `json:"event"`
}

// eventResponse is a recorded event
type eventResponse struct {
	ID                      int64     `json:"id" example:"1"`
	Name                    string    `json:"name" example:"Pageview"`
	RegisteredApplicationID int64     `json:"registeredApplicationId" example:"7"`
	CreatedAt               time.Time `json:"createdAt"`
}
