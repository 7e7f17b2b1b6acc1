package config

// SampleYAML is the commented configuration printed by `backup-rotator config`
const SampleYAML = `# backup-rotator configuration file
# Complete configuration template with all available options

# Folder the database server writes its backups to. Each backup type is a
# sub-folder holding one folder per backup, named so that names sort in
# chronological order (e.g. 2024-01-01_0000).
source_path: /opt/FileMaker/FileMaker Server/Data/Backups

# Local staging folder. Must not be the source folder or nested with it.
local_path: /var/backups/filemaker

# Remote folder name for this server; archives go to <branch>/<type>/.
branch: office-1

# Backup types to rotate, processed in this order
backup_types:
  - daily
  - hourly

# Types that are archived and uploaded. Local copies of these types are
# deleted once their upload is confirmed.
upload_types:
  - daily

# Local copies kept for every type not listed in upload_types
retention_count: 24

# Uploaded copies additionally kept locally per upload type (0 = none)
keep_uploaded: 0

# Delete each source folder once it has been copied locally
remove_source: true

# Log what every stage would do without touching any files
dry_run: false

# Refuse to start while another run holds <local_path>/.backup-rotator.lock
lock: true

archive:
  format: zip             # zip, tar.gz, tar.zst, tar.lz4
  level: default          # fastest, default, best

remote:
  provider: ftps          # ftps, sftp, s3, gcs, azure, local
  timeout: 60s

  ftps:
    host: ftp.example.com
    port: 21
    username: backups
    password: ""          # use BACKUP_ROTATOR_REMOTE_FTPS_PASSWORD
    insecure_skip_verify: false

  # sftp:
  #   host: sftp.example.com
  #   port: 22
  #   username: backups
  #   key_path: /root/.ssh/id_ed25519
  #   known_hosts_path: /root/.ssh/known_hosts
  #   trust_on_first_use: false

  # s3:
  #   bucket: my-backup-bucket
  #   region: us-east-1
  #   access_key: ""
  #   secret_key: ""
  #   endpoint: ""        # S3-compatible stores only

  # gcs:
  #   bucket: my-backup-bucket
  #   credentials_path: /path/to/credentials.json

  # azure:
  #   account_name: ""
  #   account_key: ""
  #   container_name: backups

  # local:
  #   base_path: /mnt/nas/backups

logging:
  level: normal           # quiet, normal, verbose, debug
  format: text            # text, json
  file: backups.log       # empty = stderr only
  max_size_mb: 10
  max_backups: 5

# Environment variable examples:
# BACKUP_ROTATOR_BRANCH=office-2
# BACKUP_ROTATOR_BACKUP_TYPES=daily,hourly
# BACKUP_ROTATOR_REMOTE_FTPS_PASSWORD=secret
# BACKUP_ROTATOR_LOGGING_LEVEL=verbose
`
