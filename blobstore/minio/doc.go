// Package minio implements blobstore.Store for MinIO and other
// S3-compatible object storage.
//
// Example:
//
//	client, err := miniogo.New("play.min.io", &miniogo.Options{
//		Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := minio.NewStore(client, "allknn", "datasets/")
package minio
