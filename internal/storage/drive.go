package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveBlobStore stages audio in a Google Drive folder. Objects are addressed
// by direct-download URLs so the rest of the pipeline stays backend-agnostic.
type DriveBlobStore struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveBlobStore creates a Drive-backed blob store rooted at folderName.
func NewDriveBlobStore(credentialsFile, tokenFile, folderName string) (*DriveBlobStore, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := getClient(config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	ds := &DriveBlobStore{
		service:    srv,
		folderName: folderName,
	}

	if err := ds.ensureFolder(); err != nil {
		return nil, err
	}

	return ds, nil
}

// getClient builds an authorized HTTP client from a cached token, running the
// console authorization flow once if no token exists yet.
func getClient(config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = getTokenFromWeb(config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(context.Background(), tok), nil
}

func getTokenFromWeb(config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser:\n%v\n", authURL)
	fmt.Print("Enter authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// ensureFolder finds or creates the staging folder.
func (ds *DriveBlobStore) ensureFolder() error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		ds.folderName)

	r, err := ds.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return fmt.Errorf("unable to search for folder: %w", err)
	}

	if len(r.Files) > 0 {
		ds.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{
		Name:     ds.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}

	file, err := ds.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("unable to create folder: %w", err)
	}

	ds.folderID = file.Id
	return nil
}

func (ds *DriveBlobStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	meta := &drive.File{
		Name:    name,
		Parents: []string{ds.folderID},
	}

	created, err := ds.service.Files.Create(meta).
		Media(bytes.NewReader(data)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}

	return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", created.Id), nil
}

func (ds *DriveBlobStore) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	fileID := extractDriveFileID(blobURL)
	if fileID == "" {
		return nil, fmt.Errorf("not a Drive blob URL: %s", blobURL)
	}

	resp, err := ds.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", fileID, err)
	}
	return data, nil
}

func (ds *DriveBlobStore) Delete(ctx context.Context, blobURL string) error {
	fileID := extractDriveFileID(blobURL)
	if fileID == "" {
		return fmt.Errorf("not a Drive blob URL: %s", blobURL)
	}

	if err := ds.service.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", fileID, err)
	}
	return nil
}

// extractDriveFileID pulls the file ID out of the Drive URL formats this
// store produces, plus the /file/d/ share form.
func extractDriveFileID(url string) string {
	re1 := regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	if matches := re1.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	re2 := regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	if matches := re2.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	return ""
}
