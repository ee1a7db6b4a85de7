// Package aws connects credx to Amazon Web Services.
//
// It provides two credx.Transport implementations and one
// credx.MasterKeyProvider:
//
//   - SigV4Transport signs each request with AWS Signature Version 4 and
//     sends it over HTTPS. It needs nothing but the credentials carried by
//     the request.
//   - SDKTransport builds STS and Secrets Manager SDK clients from the
//     request's credentials and renders their results back into the JSON
//     bodies the broker parses.
//   - SecretsManagerMasterKey reads the broker master key from a Secrets
//     Manager secret using the ambient AWS credential chain.
//
// # Credentials
//
// The transports never consult environment variables, shared config files
// or instance roles. Every call is signed with the credentials the broker
// resolved for the secret being accessed, which are either a decrypted
// long-lived pair or a 900 second assumed-role session.
//
// SecretsManagerMasterKey is the exception: it runs once at startup with
// the process's own identity, loaded through config.LoadDefaultConfig.
//
// # IAM Permissions Required
//
// Long-lived pairs stored for assumable credentials need sts:AssumeRole on
// the target role. The credentials that reach Secrets Manager need:
//
//	{
//	  "Effect": "Allow",
//	  "Action": [
//	    "secretsmanager:GetSecretValue",
//	    "secretsmanager:PutSecretValue"
//	  ],
//	  "Resource": "arn:aws:secretsmanager:REGION:ACCOUNT:secret:*"
//	}
//
// # Endpoints
//
// A request without an endpoint goes to https://SERVICE.REGION.amazonaws.com.
// STS requests without a region go to the global endpoint and are signed
// for us-east-1.
//
// # Usage Example
//
//	provider, err := aws.NewSecretsManagerMasterKey(ctx, aws.Config{Region: "us-east-1"}, "credx/master-key")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	broker, err := credx.New(ctx,
//	    credx.WithRecordStore(store),
//	    credx.WithTransport(aws.NewSigV4Transport()),
//	    credx.WithMasterKeyProvider(provider),
//	)
package aws
