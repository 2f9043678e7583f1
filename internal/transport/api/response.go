package api

import "github.com/labstack/echo/v4"

// Response is the envelope most endpoints answer with.
type Response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
}

func JSON(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, Response{StatusCode: code, Message: message, Data: data})
}

func OK(c echo.Context, message string, data interface{}) error {
	return JSON(c, 200, message, data)
}

func Created(c echo.Context, message string, data interface{}) error {
	return JSON(c, 201, message, data)
}
