package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMime(t *testing.T) {
	assert.Equal(t, "image/png", ResolveMime("image/png", "scan.pdf"))
	assert.Equal(t, "application/pdf", ResolveMime("", "plans.pdf"))
	assert.Equal(t, DefaultMimeType, ResolveMime("", "notes"))
	assert.Equal(t, DefaultMimeType, ResolveMime("   ", "notes"))
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/png"))
	assert.True(t, IsImage(" IMAGE/JPEG "))
	assert.False(t, IsImage("application/pdf"))
	assert.False(t, IsImage(""))
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".pdf", safeExt("plans.pdf"))
	assert.Equal(t, ".jpg", safeExt("photo.JPG"))
	assert.Equal(t, ".png", safeExt("../../etc/passwd.png"))
	assert.Equal(t, "", safeExt("no-extension"))
	assert.Equal(t, "", safeExt("weird.p@f"))
	assert.Equal(t, "", safeExt("long.extensionisfartoolong"))
}

func TestFileRefValidate(t *testing.T) {
	assert.NoError(t, FileRef{Backend: BackendLocal, LocalPath: "a.pdf"}.Validate())
	assert.NoError(t, FileRef{Backend: BackendRemote, RemoteID: "abc"}.Validate())

	assert.Error(t, FileRef{Backend: BackendLocal}.Validate())
	assert.Error(t, FileRef{Backend: BackendRemote}.Validate())
	assert.Error(t, FileRef{Backend: BackendLocal, LocalPath: "a", RemoteID: "b"}.Validate())
	assert.Error(t, FileRef{Backend: "ftp", RemoteID: "abc"}.Validate())
}
