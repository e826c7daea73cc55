package api

import (
	"net/http"

	"shareit/internal/models"
	"shareit/internal/service"

	"github.com/gin-gonic/gin"
)

type createUserBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *handlers) createUser(c *gin.Context) {
	var body createUserBody
	if !h.bindJSON(c, &body) {
		return
	}
	user, err := h.svc.Users.CreateUser(c.Request.Context(), body.Name, body.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.svc.Users.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *handlers) getUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	user, err := h.svc.Users.GetUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) updateUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var patch models.UserPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	user, err := h.svc.Users.UpdateUser(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) deleteUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Users.DeleteUser(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) createItem(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	var body service.NewItem
	if !h.bindJSON(c, &body) {
		return
	}
	item, err := h.svc.Items.CreateItem(c.Request.Context(), ownerID, body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *handlers) updateItem(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	itemID, ok := h.pathID(c)
	if !ok {
		return
	}
	var patch models.ItemPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	item, err := h.svc.Items.UpdateItem(c.Request.Context(), ownerID, itemID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *handlers) getItem(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	itemID, ok := h.pathID(c)
	if !ok {
		return
	}
	item, err := h.svc.Items.GetItem(c.Request.Context(), userID, itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *handlers) listOwnerItems(c *gin.Context) {
	ownerID, ok := h.callerID(c)
	if !ok {
		return
	}
	from, size, ok := h.pageParams(c)
	if !ok {
		return
	}
	items, err := h.svc.Items.ListOwnerItems(c.Request.Context(), ownerID, from, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) searchItems(c *gin.Context) {
	from, size, ok := h.pageParams(c)
	if !ok {
		return
	}
	items, err := h.svc.Items.SearchItems(c.Request.Context(), c.Query("text"), from, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type commentBody struct {
	Text string `json:"text"`
}

func (h *handlers) addComment(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	itemID, ok := h.pathID(c)
	if !ok {
		return
	}
	var body commentBody
	if !h.bindJSON(c, &body) {
		return
	}
	comment, err := h.svc.Comments.AddComment(c.Request.Context(), userID, itemID, body.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

type requestBody struct {
	Description string `json:"description"`
}

func (h *handlers) createRequest(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	var body requestBody
	if !h.bindJSON(c, &body) {
		return
	}
	request, err := h.svc.Requests.CreateRequest(c.Request.Context(), userID, body.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (h *handlers) listOwnRequests(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	requests, err := h.svc.Requests.ListOwnRequests(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *handlers) listOtherRequests(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	from, size, ok := h.pageParams(c)
	if !ok {
		return
	}
	requests, err := h.svc.Requests.ListOtherRequests(c.Request.Context(), userID, from, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *handlers) getRequest(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}
	requestID, ok := h.pathID(c)
	if !ok {
		return
	}
	request, err := h.svc.Requests.GetRequest(c.Request.Context(), userID, requestID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
