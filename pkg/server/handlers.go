package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FramKV/framkv/pkg/prefs"
	"github.com/FramKV/framkv/pkg/store"
)

// StoreHandler serves key-value operations over an opened store.
type StoreHandler struct {
	store *store.Store
}

// Read returns the raw value bytes for a key; the stored type tag travels
// in a response header.
func (h *StoreHandler) Read(c *gin.Context) {
	key := c.Param("key")

	value, dataType, err := h.store.Get([]byte(key))
	if err != nil {
		status, msg := mapStoreError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Header("X-FramKV-Type", prefs.TypeName(dataType))
	c.Data(http.StatusOK, "application/octet-stream", value)
}

// Write stores the request body under the key as an opaque blob.
func (h *StoreHandler) Write(c *gin.Context) {
	key := c.Param("key")

	value, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.store.WriteEntry([]byte(key), prefs.TypeBytes, value); err != nil {
		status, msg := mapStoreError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key": key, "length": len(value)})
}

// Delete tombstones the key.
func (h *StoreHandler) Delete(c *gin.Context) {
	key := c.Param("key")

	if err := h.store.Delete([]byte(key)); err != nil {
		status, msg := mapStoreError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Status(http.StatusNoContent)
}

// Exists reports key presence without transferring the value.
func (h *StoreHandler) Exists(c *gin.Context) {
	key := c.Param("key")

	exists, err := h.store.Has([]byte(key))
	if err != nil {
		status, msg := mapStoreError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "exists": exists})
}

// Stats renders the engine's statistics snapshot.
func (h *StoreHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// Blocks renders the per-block state summary.
func (h *StoreHandler) Blocks(c *gin.Context) {
	infos, err := h.store.BlockInfos()
	if err != nil {
		status, msg := mapStoreError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_block": h.store.ActiveBlockIndex(),
		"total_blocks": h.store.TotalBlocks(),
		"blocks":       infos,
	})
}

// Clear erases the whole store.
func (h *StoreHandler) Clear(c *gin.Context) {
	if err := h.store.Clear(); err != nil {
		status, msg := mapStoreError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Status(http.StatusNoContent)
}

// mapStoreError translates engine errors into HTTP status codes.
func mapStoreError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		return http.StatusNotFound, "key not found"
	case errors.Is(err, store.ErrBadArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrStoreFull):
		return http.StatusInsufficientStorage, "store full"
	case errors.Is(err, store.ErrNotInitialized):
		return http.StatusServiceUnavailable, "store not initialized"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
