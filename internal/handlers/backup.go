package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/autocat/backup-server/internal/backup"
	"github.com/autocat/backup-server/internal/middleware"
	"github.com/autocat/backup-server/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BackupHandler struct {
	svc       *backup.Service
	uploadDir string
}

func NewBackupHandler(svc *backup.Service, uploadDir string) *BackupHandler {
	return &BackupHandler{
		svc:       svc,
		uploadDir: uploadDir,
	}
}

type BackupView struct {
	ID            uint    `json:"id"`
	Name          string  `json:"name"`
	FileName      string  `json:"file_name"`
	FileSize      int64   `json:"file_size"`
	SizeMB        float64 `json:"size_mb"`
	Checksum      string  `json:"checksum"`
	Status        string  `json:"status"`
	SchemaVersion string  `json:"schema_version"`
	TableCount    int     `json:"table_count"`
	RecordsCount  int64   `json:"records_count"`
	CreatedBy     uint    `json:"created_by"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   string  `json:"completed_at,omitempty"`
}

func backupView(b *models.Backup) BackupView {
	v := BackupView{
		ID:            b.ID,
		Name:          b.Name,
		FileName:      b.FileName,
		FileSize:      b.FileSize,
		SizeMB:        b.FileSizeMB(),
		Checksum:      b.Checksum,
		Status:        string(b.Status),
		SchemaVersion: b.SchemaVersion,
		TableCount:    b.TableCount,
		RecordsCount:  b.RecordsCount,
		CreatedBy:     b.CreatedBy,
		CreatedAt:     b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if b.CompletedAt != nil {
		v.CompletedAt = b.CompletedAt.Format("2006-01-02 15:04:05")
	}
	return v
}

type CreateBackupRequest struct {
	Name string `json:"name" binding:"required,min=2,max=255"`
}

// POST /api/v1/backups
func (h *BackupHandler) Create(c *gin.Context) {
	var req CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), req.Name, middleware.GetUserID(c))
	if err != nil {
		InternalError(c, "Backup failed: "+err.Error())
		return
	}

	Created(c, backupView(rec))
}

// GET /api/v1/backups
func (h *BackupHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	backups, err := h.svc.List(limit, offset)
	if err != nil {
		InternalError(c, "Failed to fetch backups")
		return
	}

	views := make([]BackupView, len(backups))
	for i := range backups {
		views[i] = backupView(&backups[i])
	}
	Success(c, views)
}

// GET /api/v1/backups/:id
func (h *BackupHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "Invalid backup ID")
		return
	}

	rec, err := h.svc.Get(uint(id))
	if err != nil {
		NotFound(c, "Backup not found")
		return
	}
	Success(c, backupView(rec))
}

// GET /api/v1/backups/:id/download
func (h *BackupHandler) Download(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "Invalid backup ID")
		return
	}

	path, err := h.svc.GetFilePath(uint(id))
	if err != nil {
		NotFound(c, "Backup archive not available")
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// DELETE /api/v1/backups/:id
func (h *BackupHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "Invalid backup ID")
		return
	}

	if err := h.svc.Delete(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "Backup not found")
			return
		}
		Conflict(c, err.Error())
		return
	}
	NoContent(c)
}

// POST /api/v1/backups/:id/validate
func (h *BackupHandler) Validate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "Invalid backup ID")
		return
	}

	path, err := h.svc.GetFilePath(uint(id))
	if err != nil {
		NotFound(c, "Backup archive not available")
		return
	}
	Success(c, h.svc.Validate(path))
}

type RestoreRequest struct {
	Mode   string `json:"mode" binding:"required,oneof=merge replace"`
	DryRun bool   `json:"dry_run"`
}

// POST /api/v1/backups/:id/restore
func (h *BackupHandler) Restore(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "Invalid backup ID")
		return
	}

	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	path, err := h.svc.GetFilePath(uint(id))
	if err != nil {
		NotFound(c, "Backup archive not available")
		return
	}

	Success(c, h.svc.Restore(c.Request.Context(), path, backup.RestoreMode(req.Mode), req.DryRun))
}

// POST /api/v1/backups/upload
// Registers an externally produced archive; it must pass validation before a
// record is created.
func (h *BackupHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "No archive uploaded")
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = file.Filename
	}

	savePath := filepath.Join(h.uploadDir, "import-"+uuid.NewString()+".tar.gz")
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		InternalError(c, "Failed to save archive")
		return
	}

	rec, err := h.svc.Import(savePath, name, middleware.GetUserID(c))
	if err != nil {
		os.Remove(savePath)
		BadRequest(c, err.Error())
		return
	}
	Created(c, backupView(rec))
}
