package answer

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/middleware"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.POST("/answer").
			To(handler.Ask).
			Doc("Answer a legal question").
			Metadata(restfulspec.KeyOpenAPITags, []string{"answer"}).
			Reads(AskRequest{}).
			Writes(AskResponse{}).
			Returns(200, "OK", AskResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}).
			Returns(503, "Corpus Unavailable", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/answer/stream").
			To(handler.AskStream).
			Consumes(restful.MIME_JSON).
			Produces("application/x-ndjson").
			Doc("Answer a legal question as an incremental event stream").
			Metadata(restfulspec.KeyOpenAPITags, []string{"answer"}).
			Reads(AskRequest{}).
			Returns(200, "OK", nil).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}).
			Returns(503, "Corpus Unavailable", middleware.ErrorResponse{}))

	container.Add(ws)
}
