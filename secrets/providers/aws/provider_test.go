package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-release/secrets"
)

// mockSecretsManagerClient implements SecretsManagerAPI for testing.
type mockSecretsManagerClient struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsManagerClient) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	if m.getSecretValueFunc != nil {
		return m.getSecretValueFunc(ctx, params, optFns...)
	}
	return nil, errors.New("GetSecretValue not implemented")
}

func TestProviderResolve(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		ref       secrets.SecretRef
		output    *secretsmanager.GetSecretValueOutput
		err       error
		want      string
		wantErr   error
		checkCall func(t *testing.T, in *secretsmanager.GetSecretValueInput)
	}{
		{
			name: "string secret",
			ref:  secrets.SecretRef{Path: "forge/pypi"},
			output: &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String("pypi-token"),
				VersionId:    aws.String("v-1"),
				CreatedDate:  &created,
			},
			want: "pypi-token",
			checkCall: func(t *testing.T, in *secretsmanager.GetSecretValueInput) {
				assert.Equal(t, "forge/pypi", aws.ToString(in.SecretId))
				assert.Nil(t, in.VersionId)
				assert.Nil(t, in.VersionStage)
			},
		},
		{
			name:   "binary secret",
			ref:    secrets.SecretRef{Path: "bin"},
			output: &secretsmanager.GetSecretValueOutput{SecretBinary: []byte{0x01, 0x02}},
			want:   "\x01\x02",
		},
		{
			name:   "version stage",
			ref:    secrets.SecretRef{Path: "p", Version: "AWSPREVIOUS"},
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("old")},
			want:   "old",
			checkCall: func(t *testing.T, in *secretsmanager.GetSecretValueInput) {
				assert.Equal(t, "AWSPREVIOUS", aws.ToString(in.VersionStage))
				assert.Nil(t, in.VersionId)
			},
		},
		{
			name:   "version id",
			ref:    secrets.SecretRef{Path: "p", Version: "abc-123"},
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("pinned")},
			want:   "pinned",
			checkCall: func(t *testing.T, in *secretsmanager.GetSecretValueInput) {
				assert.Equal(t, "abc-123", aws.ToString(in.VersionId))
			},
		},
		{
			name:    "not found",
			ref:     secrets.SecretRef{Path: "missing"},
			err:     &types.ResourceNotFoundException{Message: aws.String("nope")},
			wantErr: secrets.ErrSecretNotFound,
		},
		{
			name:    "access denied",
			ref:     secrets.SecretRef{Path: "locked"},
			err:     &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not allowed"},
			wantErr: secrets.ErrAccessDenied,
		},
		{
			name:    "empty value",
			ref:     secrets.SecretRef{Path: "empty"},
			output:  &secretsmanager.GetSecretValueOutput{},
			wantErr: secrets.ErrProviderError,
		},
		{
			name:    "empty path",
			ref:     secrets.SecretRef{},
			wantErr: secrets.ErrInvalidRef,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSecretsManagerClient{
				getSecretValueFunc: func(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					if tt.checkCall != nil {
						tt.checkCall(t, in)
					}
					return tt.output, tt.err
				},
			}
			p := NewWithClient(mock)

			secret, err := p.Resolve(context.Background(), tt.ref)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(secret.Value))
		})
	}
}

func TestProviderOtherAPIError(t *testing.T) {
	mock := &mockSecretsManagerClient{
		getSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
		},
	}
	_, err := NewWithClient(mock).Resolve(context.Background(), secrets.SecretRef{Path: "p"})
	require.Error(t, err)
	assert.True(t, secrets.IsProviderError(err))
	assert.Contains(t, err.Error(), "ThrottlingException")
}

func TestProviderThroughManager(t *testing.T) {
	mock := &mockSecretsManagerClient{
		getSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"pypi":"tok","matrix":"mtx"}`)}, nil
		},
	}
	m := secrets.NewManager(nil)
	require.NoError(t, m.RegisterProvider(Name, NewWithClient(mock)))

	value, err := m.ResolveString(context.Background(), "aws://forge/release#matrix")
	require.NoError(t, err)
	assert.Equal(t, "mtx", value)
}
