package cognito

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
)

// DecryptSecret decrypts a base64 encoded KMS ciphertext, as stored in
// encrypted Lambda environment variables.
func DecryptSecret(ctx context.Context, api kmsiface.KMSAPI, ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	out, err := api.DecryptWithContext(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return "", wrapError("Decrypt", err)
	}
	return string(out.Plaintext), nil
}
