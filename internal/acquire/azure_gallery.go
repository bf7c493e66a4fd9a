package acquire

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	apperrors "go-medreport-scanner/internal/errors"
	"go-medreport-scanner/pkg/models"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureGallery is a gallery kept in one Azure Blob Storage container. Albums
// are blob name prefixes.
type AzureGallery struct {
	client    *azblob.Client
	container string
}

// NewAzureGallery connects with a shared key credential
func NewAzureGallery(accountName, accountKey, containerName string) (*AzureGallery, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &AzureGallery{client: client, container: containerName}, nil
}

// Pick implements Gallery
func (g *AzureGallery) Pick(ctx context.Context, ref string) (models.CapturedImage, error) {
	name := strings.TrimPrefix(ref, "/")
	if name == "" {
		latest, err := g.latest(ctx)
		if err != nil {
			return models.CapturedImage{}, err
		}
		name = latest
	}

	resp, err := g.client.DownloadStream(ctx, g.container, name, nil)
	if err != nil {
		return models.CapturedImage{}, apperrors.NewCaptureError("Failed to pick image from gallery", err)
	}
	body := resp.Body
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxSnapshotBytes))
	if err != nil {
		return models.CapturedImage{}, apperrors.NewCaptureError("Failed to pick image from gallery", err)
	}
	return Decode(data, g.container+"/"+name, models.SourceGallery)
}

// Save implements GallerySaver
func (g *AzureGallery) Save(ctx context.Context, img models.EnhancedImage, album, name string) (string, error) {
	blobName := path.Join(album, path.Base(name))
	if _, err := g.client.UploadBuffer(ctx, g.container, blobName, img.Data, nil); err != nil {
		return "", fmt.Errorf("upload blob: %w", err)
	}
	return g.container + "/" + blobName, nil
}

func (g *AzureGallery) latest(ctx context.Context) (string, error) {
	var (
		newest     string
		newestTime time.Time
	)

	pager := g.client.NewListBlobsFlatPager(g.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", apperrors.NewCaptureError("Failed to list gallery", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || !imageExtensions[strings.ToLower(path.Ext(*item.Name))] {
				continue
			}
			var modified time.Time
			if item.Properties != nil && item.Properties.LastModified != nil {
				modified = *item.Properties.LastModified
			}
			if newest == "" || modified.After(newestTime) {
				newest, newestTime = *item.Name, modified
			}
		}
	}

	if newest == "" {
		return "", apperrors.NewCaptureError("Gallery is empty", nil)
	}
	return newest, nil
}
