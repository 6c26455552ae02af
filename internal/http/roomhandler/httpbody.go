package roomhandler

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListRoomsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=open closing"`
} // @name ListRoomsQuery

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Rooms  int    `json:"rooms"  example:"3"`
} // @name HealthResponse
