package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	tokens := api.Group("/tokens")
	tokens.GET("/:hash/quote", s.getQuote)
}
